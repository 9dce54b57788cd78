// Package history records every export the agent ran.
package history

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Export is one attempt to turn the current slice set into an archive.
type Export struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	SourceName   string    `json:"source_name"`
	Container    string    `json:"container"`
	SliceCount   int       `json:"slice_count"`
	Done         int       `json:"done"`
	ArchiveBytes int64     `json:"archive_bytes"`
	OutputPath   string    `json:"output_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Progress returns completed extractions as a percentage.
func (e *Export) Progress() int {
	if e.SliceCount <= 0 {
		return 0
	}
	return e.Done * 100 / e.SliceCount
}

func NewID() string {
	return uuid.NewString()
}
