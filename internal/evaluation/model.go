package evaluation

import (
	"encoding/json"
	"errors"
	"time"
)

// TargetAssignmentSize is how many snippets a session aims to contain; fewer
// are assigned when the store holds fewer.
const TargetAssignmentSize = 5

var (
	// ErrNoContentAvailable indicates session creation was attempted with zero snippets uploaded.
	ErrNoContentAvailable = errors.New("evaluation: no snippets available for assignment")
	// ErrSessionNotFound indicates the participant has no evaluation session yet.
	ErrSessionNotFound = errors.New("evaluation: session not found")
	// ErrSessionCompleted indicates the session cursor already reached the end.
	ErrSessionCompleted = errors.New("evaluation: session already completed")
	// ErrDanglingSnippet indicates an assigned snippet was deleted after assignment.
	ErrDanglingSnippet = errors.New("evaluation: assigned snippet no longer exists")
	// ErrSnippetNotAssigned indicates a submission for a snippet that is not the session's current assignment.
	ErrSnippetNotAssigned = errors.New("evaluation: snippet is not the current assignment")
)

// Session is the fixed, ordered set of snippets assigned to one participant
// plus their progress cursor. The snippet list is immutable once created;
// Position only ever increases.
type Session struct {
	ParticipantID  string    `gorm:"column:participant_id;primaryKey;size:36;not null" json:"participantId"`
	SnippetIDsJSON string    `gorm:"column:snippet_ids_json;type:text;not null" json:"-"`
	Position       int       `gorm:"column:position;not null;default:0" json:"position"`
	Completed      bool      `gorm:"column:completed;not null;default:false" json:"completed"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "evaluation_sessions"
}

// SnippetIDs decodes the persisted assignment order.
func (s Session) SnippetIDs() ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(s.SnippetIDsJSON), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Length is the fixed assignment size chosen at creation.
func (s Session) Length() int {
	ids, err := s.SnippetIDs()
	if err != nil {
		return 0
	}
	return len(ids)
}

func encodeSnippetIDs(ids []string) (string, error) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
