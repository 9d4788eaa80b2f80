package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corvid-labs/capsule/internal/jobqueue"
	"github.com/google/uuid"
)

// DeadLetterJob is a terminally failed job retained for operator review,
// recorded in addition to (not instead of) the jobs row's own 'failed'
// status.
type DeadLetterJob struct {
	ID            uuid.UUID
	OriginalJobID uuid.UUID
	Kind          string
	Payload       json.RawMessage
	Attempts      int
	ErrorMessage  string
	FailedAt      time.Time
	ReviewedAt    *time.Time
	ReviewedBy    *string
	Discarded     bool
}

// MoveToDeadLetter records a terminally failed job for operator review. It
// is additive bookkeeping invoked from the same path as MarkFailure's
// terminal branch; it never changes the jobs row itself.
func (s *Store) MoveToDeadLetter(ctx context.Context, job jobqueue.Job, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letter_jobs (original_job_id, kind, payload, attempts, error_message)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, job.Kind, []byte(job.Payload), job.Attempts, errMsg)
	if err != nil {
		return fmt.Errorf("postgres: move job %s to dead letter: %w", job.ID, err)
	}
	return nil
}

// ListDeadLetterJobs returns undiscarded dead-letter entries, most recently
// failed first.
func (s *Store) ListDeadLetterJobs(ctx context.Context, limit int) ([]DeadLetterJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, original_job_id, kind, payload, attempts, error_message,
		       failed_at, reviewed_at, reviewed_by, discarded
		FROM dead_letter_jobs
		WHERE NOT discarded
		ORDER BY failed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list dead letter jobs: %w", err)
	}
	defer rows.Close()

	var out []DeadLetterJob
	for rows.Next() {
		var d DeadLetterJob
		var payload []byte
		if err := rows.Scan(&d.ID, &d.OriginalJobID, &d.Kind, &payload, &d.Attempts,
			&d.ErrorMessage, &d.FailedAt, &d.ReviewedAt, &d.ReviewedBy, &d.Discarded); err != nil {
			return nil, fmt.Errorf("postgres: scan dead letter job: %w", err)
		}
		d.Payload = payload
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list dead letter jobs: %w", err)
	}
	return out, nil
}

// DiscardDeadLetterJob marks an entry reviewed and discarded; it does not
// requeue the original job.
func (s *Store) DiscardDeadLetterJob(ctx context.Context, id uuid.UUID, reviewedBy string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dead_letter_jobs
		SET discarded = true, reviewed_at = now(), reviewed_by = $2
		WHERE id = $1 AND NOT discarded
	`, id, reviewedBy)
	if err != nil {
		return fmt.Errorf("postgres: discard dead letter job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: dead letter job %s: %w", id, ErrJobNotFound)
	}
	return nil
}
