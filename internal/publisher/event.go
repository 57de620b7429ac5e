// Package publisher defines the notification emitted when a run finishes.
package publisher

import (
	"time"

	"github.com/JakeFAU/company-signals/internal/crawler"
)

// EventRunCompleted names the run-complete notification.
const EventRunCompleted = "run.completed"

// RunCompleted is published once per finished run.
type RunCompleted struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Counts     crawler.RunCounts `json:"counts"`
	ArchiveURI string            `json:"archive_uri,omitempty"`
}

// NewRunCompleted summarizes run. archiveURI may be empty when no blob store is configured.
func NewRunCompleted(run crawler.Run, archiveURI string) RunCompleted {
	return RunCompleted{
		RunID:      run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Counts:     run.Counts(),
		ArchiveURI: archiveURI,
	}
}

// Attributes returns message attributes for transports that support them.
func (e RunCompleted) Attributes() map[string]string {
	return map[string]string{
		"event":  EventRunCompleted,
		"run_id": e.RunID,
	}
}
