package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/coughcrowd/backend/internal/audio"
	"github.com/coughcrowd/backend/internal/participants"
	"github.com/coughcrowd/backend/internal/responses"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingLedger   = errors.New("response ledger is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies of the session assignment engine.
type ServiceConfig struct {
	Database *gorm.DB
	Ledger   *responses.Ledger
	Clock    func() time.Time
	Logger   *zap.Logger
	// Shuffle permutes the candidate snippet order before the sample is cut.
	// Tests inject a no-op to pin the assignment.
	Shuffle func(n int, swap func(i, j int))
}

// Service owns every participant's evaluation session: the fixed random
// assignment, the progress cursor, and the record-and-advance workflow.
type Service struct {
	db      *gorm.DB
	ledger  *responses.Ledger
	clock   func() time.Time
	logger  *zap.Logger
	shuffle func(n int, swap func(i, j int))
}

// NewService constructs the assignment engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Ledger == nil {
		return nil, errMissingLedger
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	shuffle := cfg.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &Service{
		db:      cfg.Database,
		ledger:  cfg.Ledger,
		clock:   clock,
		logger:  logger,
		shuffle: shuffle,
	}, nil
}

// GetOrCreateSession returns the participant's session, creating it on first
// fetch. The assignment is sampled once, uniformly without replacement, and
// never re-sampled afterwards: progress is tracked by index, so the order a
// participant sees must survive reloads.
func (s *Service) GetOrCreateSession(ctx context.Context, participantID string) (Session, error) {
	var session Session
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&participants.Participant{}).
			Where("id = ?", participantID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return participants.ErrParticipantNotFound
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("participant_id = ?", participantID).
			Take(&session).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var snippetIDs []string
		if err := tx.Model(&audio.Snippet{}).
			Order("uploaded_at DESC").
			Pluck("id", &snippetIDs).Error; err != nil {
			return err
		}
		if len(snippetIDs) == 0 {
			return ErrNoContentAvailable
		}

		s.shuffle(len(snippetIDs), func(i, j int) {
			snippetIDs[i], snippetIDs[j] = snippetIDs[j], snippetIDs[i]
		})
		k := TargetAssignmentSize
		if len(snippetIDs) < k {
			k = len(snippetIDs)
		}
		encoded, err := encodeSnippetIDs(snippetIDs[:k])
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		session = Session{
			ParticipantID:  participantID,
			SnippetIDsJSON: encoded,
			Position:       0,
			Completed:      false,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&session).Error; err != nil {
			s.logger.Error("session insert failed", zap.Error(err),
				zap.String("participant_id", participantID))
			return err
		}
		s.logger.Info("evaluation session created",
			zap.String("participant_id", participantID),
			zap.Int("assignment_size", k))
		return nil
	})
	if txErr != nil {
		return Session{}, txErr
	}
	return session, nil
}

// GetSession returns an existing session or ErrSessionNotFound.
func (s *Service) GetSession(ctx context.Context, participantID string) (Session, error) {
	var session Session
	err := s.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// CurrentSnippet resolves the cursor entry. A snippet deleted after
// assignment is surfaced as ErrDanglingSnippet, never silently skipped.
func (s *Service) CurrentSnippet(ctx context.Context, session Session) (audio.Snippet, error) {
	if session.Completed {
		return audio.Snippet{}, ErrSessionCompleted
	}
	ids, err := session.SnippetIDs()
	if err != nil {
		return audio.Snippet{}, err
	}
	if session.Position < 0 || session.Position >= len(ids) {
		return audio.Snippet{}, ErrSessionCompleted
	}

	var snippet audio.Snippet
	err = s.db.WithContext(ctx).Where("id = ?", ids[session.Position]).Take(&snippet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("assigned snippet deleted after assignment",
			zap.String("participant_id", session.ParticipantID),
			zap.String("snippet_id", ids[session.Position]))
		return audio.Snippet{}, fmt.Errorf("%w: %s", ErrDanglingSnippet, ids[session.Position])
	}
	if err != nil {
		return audio.Snippet{}, err
	}
	return snippet, nil
}

// SubmitResult carries everything a submission hands back to the participant.
type SubmitResult struct {
	Response         responses.Response
	Session          Session
	SessionCompleted bool
}

// SubmitResponse records one classification and advances the cursor in a
// single transaction: a failed record leaves neither a response row nor a
// moved cursor, and the cursor never moves without a recorded response.
func (s *Service) SubmitResponse(ctx context.Context, participantID, snippetID string, selection responses.Selection) (SubmitResult, error) {
	var result SubmitResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("participant_id = ?", participantID).
			Take(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if session.Completed {
			return ErrSessionCompleted
		}

		var snippetCount int64
		if err := tx.Model(&audio.Snippet{}).Where("id = ?", snippetID).Count(&snippetCount).Error; err != nil {
			return err
		}
		if snippetCount == 0 {
			return audio.ErrSnippetNotFound
		}

		ids, err := session.SnippetIDs()
		if err != nil {
			return err
		}
		if session.Position >= len(ids) {
			return ErrSessionCompleted
		}
		if ids[session.Position] != snippetID {
			for i := 0; i < session.Position; i++ {
				if ids[i] == snippetID {
					return fmt.Errorf("%w: participant %s snippet %s", responses.ErrDuplicateResponse, participantID, snippetID)
				}
			}
			return fmt.Errorf("%w: %s", ErrSnippetNotAssigned, snippetID)
		}

		response, err := s.ledger.RecordTx(tx, participantID, snippetID, selection)
		if err != nil {
			return err
		}

		session.Position++
		session.Completed = session.Position >= len(ids)
		session.UpdatedAt = s.clock().UTC()
		if err := tx.Model(&Session{}).
			Where("participant_id = ?", participantID).
			Updates(map[string]interface{}{
				"position":   session.Position,
				"completed":  session.Completed,
				"updated_at": session.UpdatedAt,
			}).Error; err != nil {
			s.logger.Error("session advance failed", zap.Error(err),
				zap.String("participant_id", participantID))
			return err
		}

		result = SubmitResult{
			Response:         response,
			Session:          session,
			SessionCompleted: session.Completed,
		}
		return nil
	})
	if txErr != nil {
		return SubmitResult{}, txErr
	}
	return result, nil
}
