package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corvid-labs/capsule/internal/jobqueue"
	"github.com/corvid-labs/capsule/internal/ptr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Enqueue inserts a new job. A nil runAt means "due now"; a nil maxAttempts
// falls back to jobqueue.DefaultMaxAttempts.
func (s *Store) Enqueue(ctx context.Context, kind string, payload json.RawMessage, runAt *time.Time, maxAttempts *int) (uuid.UUID, error) {
	at := ptr.Deref(runAt, time.Now().UTC())
	max := ptr.Deref(maxAttempts, jobqueue.DefaultMaxAttempts)

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (kind, payload, run_at, max_attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, kind, payload, at, max).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres: enqueue %s: %w", kind, err)
	}
	return id, nil
}

// FetchDue claims up to limit due jobs for workerID in a single statement:
// the SKIP LOCKED subselect and the status transition happen atomically, so
// two workers polling concurrently never claim the same row. Due jobs are
// claimed in run_at order.
func (s *Store) FetchDue(ctx context.Context, limit int, workerID uuid.UUID, visibilitySecs int) ([]jobqueue.Job, error) {
	visibilityTill := time.Now().UTC().Add(time.Duration(visibilitySecs) * time.Second)

	rows, err := s.pool.Query(ctx, `
		UPDATE jobs
		SET status = 'running',
		    visibility_till = $3,
		    reserved_by = $2,
		    updated_at = now()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE run_at <= now()
			  AND (status = 'queued' OR (status = 'running' AND visibility_till < now()))
			ORDER BY run_at
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING id, kind, payload, status, run_at, attempts, max_attempts,
		          backoff_seconds, last_error, visibility_till, reserved_by,
		          created_at, updated_at
	`, limit, workerID, visibilityTill)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []jobqueue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch due jobs: %w", err)
	}
	return jobs, nil
}

// MarkSuccess transitions a job to succeeded and clears its reservation.
func (s *Store) MarkSuccess(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'succeeded', visibility_till = NULL, reserved_by = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark success %s: %w", id, err)
	}
	return nil
}

// MarkFailure records a failure. A non-nil nextRunAt schedules a retry
// (status returns to queued); a nil nextRunAt terminates the job (status
// becomes failed). Either way the reservation is cleared and attempts is
// incremented.
func (s *Store) MarkFailure(ctx context.Context, id uuid.UUID, errMsg string, nextRunAt *time.Time, backoffSeconds int) error {
	status := jobqueue.StatusFailed
	if nextRunAt != nil {
		status = jobqueue.StatusQueued
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2,
		    attempts = attempts + 1,
		    last_error = $3,
		    run_at = COALESCE($4, run_at),
		    backoff_seconds = $5,
		    visibility_till = NULL,
		    reserved_by = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id, string(status), errMsg, nextRunAt, backoffSeconds)
	if err != nil {
		return fmt.Errorf("postgres: mark failure %s: %w", id, err)
	}
	return nil
}

// ExtendVisibility pushes a running job's visibility deadline forward. It is
// a no-op if the job is no longer running (e.g. another worker reclaimed it
// after a timeout).
func (s *Store) ExtendVisibility(ctx context.Context, id uuid.UUID, visibilitySecs int) error {
	newVisibility := time.Now().UTC().Add(time.Duration(visibilitySecs) * time.Second)

	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET visibility_till = $2, updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, id, newVisibility)
	if err != nil {
		return fmt.Errorf("postgres: extend visibility %s: %w", id, err)
	}
	return nil
}

func scanJob(rows pgx.Rows) (jobqueue.Job, error) {
	var (
		job            jobqueue.Job
		status         string
		lastError      *string
		visibilityTill *time.Time
		reservedBy     *uuid.UUID
	)
	err := rows.Scan(
		&job.ID, &job.Kind, &job.Payload, &status, &job.RunAt, &job.Attempts,
		&job.MaxAttempts, &job.BackoffSeconds, &lastError, &visibilityTill,
		&reservedBy, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return jobqueue.Job{}, err
	}
	job.Status = jobqueue.Status(status)
	job.LastError = lastError
	job.VisibilityTill = visibilityTill
	job.ReservedBy = reservedBy
	return job, nil
}

// ErrJobNotFound is returned when an operation targets a job id that does
// not exist.
var ErrJobNotFound = errors.New("postgres: job not found")
