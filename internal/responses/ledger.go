package responses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coughcrowd/backend/internal/ident"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// LedgerConfig describes the dependencies required by the response ledger.
type LedgerConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ident.Provider
	Logger     *zap.Logger
}

// Ledger is the append-only record of participant classifications.
type Ledger struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ident.Provider
	logger     *zap.Logger
}

// NewLedger constructs the response ledger.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Ledger{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// RecordTx appends a response inside the caller's transaction. The indexed
// duplicate lookup runs against the same transaction, so a concurrent insert
// for the pair cannot slip between check and write; the composite unique
// index catches anything that does.
func (l *Ledger) RecordTx(tx *gorm.DB, participantID, snippetID string, selection Selection) (Response, error) {
	var count int64
	if err := tx.Model(&Response{}).
		Where("participant_id = ? AND snippet_id = ?", participantID, snippetID).
		Count(&count).Error; err != nil {
		return Response{}, err
	}
	if count > 0 {
		return Response{}, fmt.Errorf("%w: participant %s snippet %s", ErrDuplicateResponse, participantID, snippetID)
	}

	id, err := l.idProvider.NewID()
	if err != nil {
		return Response{}, err
	}
	response := Response{
		ID:            id,
		ParticipantID: participantID,
		SnippetID:     snippetID,
		Selection:     selection,
		RespondedAt:   l.clock().UTC(),
	}
	if err := tx.Create(&response).Error; err != nil {
		l.logger.Error("response insert failed", zap.Error(err),
			zap.String("participant_id", participantID),
			zap.String("snippet_id", snippetID))
		return Response{}, err
	}
	return response, nil
}

// ListByParticipant returns every response recorded by one participant.
func (l *Ledger) ListByParticipant(ctx context.Context, participantID string) ([]Response, error) {
	var all []Response
	if err := l.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

// ListBySnippet returns every response recorded against one snippet.
func (l *Ledger) ListBySnippet(ctx context.Context, snippetID string) ([]Response, error) {
	var all []Response
	if err := l.db.WithContext(ctx).
		Where("snippet_id = ?", snippetID).
		Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

// Filter narrows the admin response listing. Zero values mean "any".
type Filter struct {
	SnippetID string
	Selection Selection
	// Date restricts to one UTC calendar day when non-zero.
	Date time.Time
}

// List returns responses matching the filter, newest first.
func (l *Ledger) List(ctx context.Context, filter Filter) ([]Response, error) {
	query := l.db.WithContext(ctx).Model(&Response{})
	if filter.SnippetID != "" {
		query = query.Where("snippet_id = ?", filter.SnippetID)
	}
	if filter.Selection != "" {
		query = query.Where("selection = ?", filter.Selection)
	}
	if !filter.Date.IsZero() {
		start, end := dayBounds(filter.Date)
		query = query.Where("responded_at >= ? AND responded_at < ?", start, end)
	}
	var all []Response
	if err := query.Order("responded_at DESC").Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

// DeleteByDate removes every response recorded on the given UTC calendar day.
// The delete is a single statement, so a partial clear cannot be observed.
func (l *Ledger) DeleteByDate(ctx context.Context, date time.Time) (int64, error) {
	start, end := dayBounds(date)
	result := l.db.WithContext(ctx).
		Where("responded_at >= ? AND responded_at < ?", start, end).
		Delete(&Response{})
	if result.Error != nil {
		l.logger.Error("bulk response delete failed", zap.Error(result.Error),
			zap.Time("date", start))
		return 0, result.Error
	}
	l.logger.Info("responses cleared", zap.Time("date", start), zap.Int64("deleted", result.RowsAffected))
	return result.RowsAffected, nil
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	utc := date.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
