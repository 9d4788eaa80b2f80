// Package jobqueue defines the durable job model and the store/handler
// contracts the worker supervisor depends on. The concrete store lives in
// internal/storage/postgres; concrete handlers live in internal/handlers.
package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// DefaultMaxAttempts is applied to jobs enqueued without an explicit cap.
const DefaultMaxAttempts = 25

// Job is a single unit of durable work. Running jobs always carry a non-nil
// VisibilityTill and ReservedBy; jobs in any other status carry neither.
type Job struct {
	ID             uuid.UUID
	Kind           string
	Payload        json.RawMessage
	Status         Status
	RunAt          time.Time
	Attempts       int
	MaxAttempts    int
	BackoffSeconds int
	LastError      *string
	VisibilityTill *time.Time
	ReservedBy     *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store is the durable job queue a worker supervisor and its handlers
// operate against.
type Store interface {
	Enqueue(ctx context.Context, kind string, payload json.RawMessage, runAt *time.Time, maxAttempts *int) (uuid.UUID, error)
	FetchDue(ctx context.Context, limit int, workerID uuid.UUID, visibilitySecs int) ([]Job, error)
	MarkSuccess(ctx context.Context, id uuid.UUID) error
	MarkFailure(ctx context.Context, id uuid.UUID, errMsg string, nextRunAt *time.Time, backoffSeconds int) error
	ExtendVisibility(ctx context.Context, id uuid.UUID, visibilitySecs int) error
}
