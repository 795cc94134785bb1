package database

import (
	"errors"
	"time"

	"github.com/coughcrowd/backend/internal/responses"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeSelectionValues = "2026-08-10_normalize_selection_values"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeSelectionValues, apply: normalizeSelectionValues},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Early builds stored the middle label with an underscore; the aggregator
// groups on the canonical hyphenated value.
func normalizeSelectionValues(db *gorm.DB) error {
	return db.Model(&responses.Response{}).
		Where("selection = ?", "throat_clear").
		Update("selection", string(responses.SelectionThroatClear)).Error
}
