package responses

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Selection is one participant's classification of one snippet.
type Selection string

const (
	SelectionCough       Selection = "cough"
	SelectionThroatClear Selection = "throat-clear"
	SelectionOther       Selection = "other"
)

var (
	// ErrInvalidSelection indicates a value outside the three accepted labels.
	ErrInvalidSelection = errors.New("responses: invalid selection")
	// ErrDuplicateResponse indicates the (participant, snippet) pair already answered.
	ErrDuplicateResponse = errors.New("responses: duplicate response")
)

// ParseSelection validates a raw label value.
func ParseSelection(raw string) (Selection, error) {
	switch Selection(strings.TrimSpace(raw)) {
	case SelectionCough:
		return SelectionCough, nil
	case SelectionThroatClear:
		return SelectionThroatClear, nil
	case SelectionOther:
		return SelectionOther, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSelection, raw)
	}
}

// Response is one append-only classification event. The composite unique
// index is the structural backstop for the at-most-one-per-pair guarantee.
type Response struct {
	ID            string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	ParticipantID string    `gorm:"column:participant_id;size:36;not null;uniqueIndex:idx_responses_participant_snippet,priority:1" json:"participantId"`
	SnippetID     string    `gorm:"column:snippet_id;size:36;not null;uniqueIndex:idx_responses_participant_snippet,priority:2;index" json:"snippetId"`
	Selection     Selection `gorm:"column:selection;size:32;not null" json:"selection"`
	RespondedAt   time.Time `gorm:"column:responded_at;not null;index" json:"respondedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Response) TableName() string {
	return "responses"
}
