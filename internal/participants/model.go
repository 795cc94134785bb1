package participants

import (
	"errors"
	"time"
)

const (
	// MinBatchSize is the smallest accepted QR batch.
	MinBatchSize = 1
	// MaxBatchSize is the largest accepted QR batch.
	MaxBatchSize = 100
)

var (
	// ErrParticipantNotFound indicates the id or token resolves to nothing.
	ErrParticipantNotFound = errors.New("participants: participant not found")
	// ErrInvalidBatchCount indicates a batch size outside [1,100].
	ErrInvalidBatchCount = errors.New("participants: batch count out of range")
	// ErrTokenExhausted indicates token generation kept colliding.
	ErrTokenExhausted = errors.New("participants: could not allocate a unique token")
)

// Participant is one QR-code-holding evaluator. Rows are never mutated after
// creation and never deleted in the normal flow.
type Participant struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	Token     string    `gorm:"column:token;size:32;not null;uniqueIndex" json:"token"`
	Label     string    `gorm:"column:label;size:190" json:"label,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Participant) TableName() string {
	return "participants"
}
