package audio

import (
	"errors"
	"time"
)

const (
	// MinDurationMS is the shortest playable snippet accepted for labeling.
	MinDurationMS = 2000
	// MaxDurationMS is the longest playable snippet accepted for labeling.
	MaxDurationMS = 10000
)

var (
	// ErrSnippetNotFound indicates the referenced snippet does not exist.
	ErrSnippetNotFound = errors.New("audio: snippet not found")
	// ErrInvalidDuration indicates the probed duration falls outside the accepted window.
	ErrInvalidDuration = errors.New("audio: duration out of range")
)

// Snippet models one uploaded audio sample available for classification.
type Snippet struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	Filename     string    `gorm:"column:filename;size:190;not null;uniqueIndex" json:"filename"`
	OriginalName string    `gorm:"column:original_name;size:320;not null" json:"originalName"`
	MimeType     string    `gorm:"column:mime_type;size:64;not null" json:"mimeType"`
	DurationMS   int64     `gorm:"column:duration_ms;not null" json:"durationMs"`
	UploadedAt   time.Time `gorm:"column:uploaded_at;not null;index" json:"uploadedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Snippet) TableName() string {
	return "audio_snippets"
}

// DurationInRange reports whether a probed duration satisfies the upload invariant.
func DurationInRange(durationMS int64) bool {
	return durationMS >= MinDurationMS && durationMS <= MaxDurationMS
}
