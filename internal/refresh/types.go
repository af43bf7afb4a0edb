package refresh

import (
	"context"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
)

// Initializer rebuilds every prediction of one store
type Initializer interface {
	InitializeAllPredictions(ctx context.Context, storeID string) (domain.InitializationResult, error)
}

// Config holds the schedule and pool settings
type Config struct {
	Interval      time.Duration // Time between two full refreshes
	WorkerCount   int           // Stores refreshed concurrently
	RetryAttempts int           // Attempts per store before giving up
	RetryBackoff  time.Duration // Wait between attempts
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:      time.Hour,
		WorkerCount:   4,
		RetryAttempts: 3,
		RetryBackoff:  10 * time.Second,
	}
}

// RunStatus represents the state of one store refresh
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Run tracks the refresh of a single store
type Run struct {
	StoreID      string                      `json:"store_id"`
	Status       RunStatus                   `json:"status"`
	Attempts     int                         `json:"attempts"`
	Result       domain.InitializationResult `json:"result"`
	StartedAt    time.Time                   `json:"started_at"`
	CompletedAt  *time.Time                  `json:"completed_at,omitempty"`
	ErrorMessage string                      `json:"error_message,omitempty"`
}
