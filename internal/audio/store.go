package audio

import (
	"context"
	"errors"
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

// StoreConfig describes the dependencies required by the snippet store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ident.Provider
	Logger     *zap.Logger
}

// Store is the source of truth for uploaded snippet metadata.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ident.Provider
	logger     *zap.Logger
}

// NewStore constructs a snippet store.
func NewStore(cfg StoreConfig) (*Store, error) {
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
	return &Store{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// CreateInput carries validated upload metadata into the store.
type CreateInput struct {
	Filename     string
	OriginalName string
	MimeType     string
	DurationMS   int64
}

// Create persists snippet metadata. Duration validation happens at the upload
// boundary; a violation reaching this far is recorded as a warning, not a failure.
func (s *Store) Create(ctx context.Context, input CreateInput) (Snippet, error) {
	if !DurationInRange(input.DurationMS) {
		s.logger.Warn("snippet duration outside accepted range",
			zap.String("filename", input.Filename),
			zap.Int64("duration_ms", input.DurationMS))
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Snippet{}, err
	}

	snippet := Snippet{
		ID:           id,
		Filename:     input.Filename,
		OriginalName: input.OriginalName,
		MimeType:     input.MimeType,
		DurationMS:   input.DurationMS,
		UploadedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&snippet).Error; err != nil {
		s.logger.Error("snippet insert failed", zap.Error(err), zap.String("filename", input.Filename))
		return Snippet{}, err
	}
	return snippet, nil
}

// GetByID resolves one snippet or ErrSnippetNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (Snippet, error) {
	var snippet Snippet
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&snippet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snippet{}, ErrSnippetNotFound
	}
	if err != nil {
		return Snippet{}, err
	}
	return snippet, nil
}

// GetByFilename resolves a snippet by its storage key or ErrSnippetNotFound.
func (s *Store) GetByFilename(ctx context.Context, filename string) (Snippet, error) {
	var snippet Snippet
	err := s.db.WithContext(ctx).Where("filename = ?", filename).Take(&snippet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snippet{}, ErrSnippetNotFound
	}
	if err != nil {
		return Snippet{}, err
	}
	return snippet, nil
}

// List returns all snippets, newest upload first.
func (s *Store) List(ctx context.Context) ([]Snippet, error) {
	var snippets []Snippet
	if err := s.db.WithContext(ctx).Order("uploaded_at DESC").Find(&snippets).Error; err != nil {
		return nil, err
	}
	return snippets, nil
}

// Delete removes snippet metadata. Responses referencing the snippet are kept;
// stats enumerate existing snippets only, so orphans fall out of the per-snippet view.
func (s *Store) Delete(ctx context.Context, id string) (Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return Snippet{}, err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Snippet{}).Error; err != nil {
		s.logger.Error("snippet delete failed", zap.Error(err), zap.String("snippet_id", id))
		return Snippet{}, err
	}
	return snippet, nil
}
