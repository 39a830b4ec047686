package history

import (
	"time"
)

// RunStatus represents the status of a scan run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single execution of a scan
type Run struct {
	ID              string     `json:"id"`
	Preset          *string    `json:"preset,omitempty"`
	Status          RunStatus  `json:"status"`
	Phase           string     `json:"phase"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	NumAngles       int        `json:"numAngles"`
	ImagesTotal     int        `json:"imagesTotal"`
	ImagesCollected int        `json:"imagesCollected"`
	FileName        *string    `json:"fileName,omitempty"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
}

// Duration returns how long the run took, or how long it has been
// running if it has not completed yet.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}
