package database

import (
	"fmt"

	"github.com/coughcrowd/backend/internal/audio"
	"github.com/coughcrowd/backend/internal/evaluation"
	"github.com/coughcrowd/backend/internal/participants"
	"github.com/coughcrowd/backend/internal/responses"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// A single open connection keeps all read-modify-write paths serialized.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate ensures the schema for every persisted entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&audio.Snippet{},
		&participants.Participant{},
		&evaluation.Session{},
		&responses.Response{},
		&migrationRecord{},
	)
}
