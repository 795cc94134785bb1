package participants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coughcrowd/backend/internal/ident"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTokenAttempts = 5

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// RegistryConfig describes the dependencies required by the participant registry.
type RegistryConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ident.Provider
	Logger     *zap.Logger
	// TokenFunc overrides token generation, used by tests to force collisions.
	TokenFunc func() (string, error)
}

// Registry creates and resolves participants by id or public token.
type Registry struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ident.Provider
	logger     *zap.Logger
	newToken   func() (string, error)
}

// NewRegistry constructs a participant registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
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
	tokenFunc := cfg.TokenFunc
	if tokenFunc == nil {
		tokenFunc = newToken
	}
	return &Registry{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		newToken:   tokenFunc,
	}, nil
}

// Create registers a single participant with an optional group label.
func (r *Registry) Create(ctx context.Context, label string) (Participant, error) {
	id, err := r.idProvider.NewID()
	if err != nil {
		return Participant{}, err
	}

	participant := Participant{
		ID:        id,
		Label:     strings.TrimSpace(label),
		CreatedAt: r.clock().UTC(),
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := r.newToken()
		if err != nil {
			return Participant{}, err
		}
		var count int64
		if err := r.db.WithContext(ctx).Model(&Participant{}).
			Where("token = ?", token).
			Count(&count).Error; err != nil {
			return Participant{}, err
		}
		if count > 0 {
			r.logger.Warn("participant token collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		participant.Token = token
		if err := r.db.WithContext(ctx).Create(&participant).Error; err != nil {
			r.logger.Error("participant insert failed", zap.Error(err))
			return Participant{}, err
		}
		return participant, nil
	}

	return Participant{}, fmt.Errorf("%w: %d attempts", ErrTokenExhausted, maxTokenAttempts)
}

// CreateBatch registers count participants sharing one label. Count outside
// [1,100] is a validation error, never clamped.
func (r *Registry) CreateBatch(ctx context.Context, count int, label string) ([]Participant, error) {
	if count < MinBatchSize || count > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchCount, count)
	}

	created := make([]Participant, 0, count)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batchRegistry := *r
		batchRegistry.db = tx
		for i := 0; i < count; i++ {
			participant, err := batchRegistry.Create(ctx, label)
			if err != nil {
				return err
			}
			created = append(created, participant)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByToken resolves the public QR token to a participant.
func (r *Registry) GetByToken(ctx context.Context, token string) (Participant, error) {
	var participant Participant
	err := r.db.WithContext(ctx).Where("token = ?", strings.TrimSpace(token)).Take(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Participant{}, ErrParticipantNotFound
	}
	if err != nil {
		return Participant{}, err
	}
	return participant, nil
}

// GetByID resolves the internal participant identifier.
func (r *Registry) GetByID(ctx context.Context, id string) (Participant, error) {
	var participant Participant
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Participant{}, ErrParticipantNotFound
	}
	if err != nil {
		return Participant{}, err
	}
	return participant, nil
}

// List returns every registered participant, newest first.
func (r *Registry) List(ctx context.Context) ([]Participant, error) {
	var all []Participant
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}
