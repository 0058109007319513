// Package store provides the run journal.
package store

import (
	"context"
	"time"

	"sisu-notifier/internal/models"
	"sisu-notifier/internal/pipeline"
)

// RunStore defines the interface for the run journal. The journal is written
// after every run and read only for history views.
type RunStore interface {
	RecordRun(ctx context.Context, res pipeline.Result) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	Close() error
}

// Run is one journal entry.
type Run struct {
	ID                string                `json:"id"`
	StartedAt         time.Time             `json:"startedAt"`
	FinishedAt        time.Time             `json:"finishedAt"`
	Success           bool                  `json:"success"`
	ClientsChecked    int                   `json:"clientsChecked"`
	MatchCount        int                   `json:"matchCount"`
	NotificationsSent int                   `json:"notificationsSent"`
	Delivery          string                `json:"delivery"`
	Subject           string                `json:"subject,omitempty"`
	Error             string                `json:"error,omitempty"`
	Matches           []models.ClosingMatch `json:"matches"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

// ClampLimit bounds a requested list size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
