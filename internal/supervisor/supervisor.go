// Package supervisor runs the worker loop: poll for due jobs, hand them off
// to a bounded pool of goroutines, and process each one through the handler
// registry with panic recovery and retry scheduling.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/corvid-labs/capsule/internal/backoff"
	"github.com/corvid-labs/capsule/internal/handlers"
	"github.com/corvid-labs/capsule/internal/jobqueue"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// Config controls concurrency and timing for the worker loop.
type Config struct {
	Concurrency           int
	PollIntervalMs        int
	VisibilityTimeoutSecs int
	BaseBackoffSecs       int
}

// Supervisor polls a jobqueue.Handle for due work and dispatches it through
// a Registry, bounding in-flight jobs to Config.Concurrency.
type Supervisor struct {
	handle   jobqueue.Handle
	registry *handlers.Registry
	cfg      Config
	workerID uuid.UUID
}

// New builds a Supervisor. handle is both the job store the fetcher/mark
// calls operate against and the capability surface handed to handlers.
func New(handle jobqueue.Handle, registry *handlers.Registry, cfg Config) *Supervisor {
	return &Supervisor{
		handle:   handle,
		registry: registry,
		cfg:      cfg,
		workerID: uuid.New(),
	}
}

// Run blocks until ctx is cancelled, then waits for every in-flight job to
// finish before returning. In-flight handlers are never cancelled mid-run;
// only the fetch and processor loops stop early.
func (s *Supervisor) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "starting worker supervisor",
		"worker_id", s.workerID,
		"concurrency", s.cfg.Concurrency,
		"poll_interval_ms", s.cfg.PollIntervalMs,
		"visibility_timeout_secs", s.cfg.VisibilityTimeoutSecs)

	jobs := make(chan jobqueue.Job, s.cfg.Concurrency*2)
	sem := make(chan struct{}, s.cfg.Concurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.runFetcher(ctx, jobs)
	}()

	go s.runProcessor(ctx, jobs, sem)

	<-ctx.Done()
	slog.InfoContext(context.Background(), "shutdown initiated, waiting for in-flight jobs")

	// Reacquire every permit: this blocks until all currently-running jobs
	// have released theirs, without interrupting them.
	for i := 0; i < s.cfg.Concurrency; i++ {
		sem <- struct{}{}
	}
	<-done

	slog.InfoContext(context.Background(), "all jobs completed, worker supervisor stopped")
	return nil
}

func (s *Supervisor) runFetcher(ctx context.Context, jobs chan<- jobqueue.Job) {
	ticker := time.NewTicker(time.Duration(s.cfg.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			return
		case <-ticker.C:
			due, err := s.handle.FetchDue(context.Background(), s.cfg.Concurrency, s.workerID, s.cfg.VisibilityTimeoutSecs)
			if err != nil {
				slog.ErrorContext(ctx, "failed to fetch due jobs", "error", err)
				time.Sleep(time.Second)
				continue
			}
			for _, job := range due {
				select {
				case jobs <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Supervisor) runProcessor(ctx context.Context, jobs <-chan jobqueue.Job, sem chan struct{}) {
	for job := range jobs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func(job jobqueue.Job) {
			defer func() { <-sem }()
			s.execute(context.Background(), job)
		}(job)
	}
}

// execute runs one job to completion: creates its handler, invokes it under
// panic recovery, and records success or schedules/terminates retry.
func (s *Supervisor) execute(ctx context.Context, job jobqueue.Job) {
	slog.InfoContext(ctx, "processing job", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempts+1)

	handler, err := s.registry.Create(job.Kind)
	if err != nil {
		slog.ErrorContext(ctx, "no handler for job kind", "job_id", job.ID, "kind", job.Kind, "error", err)
		s.terminate(ctx, job, err.Error())
		return
	}

	runErr := s.runHandler(ctx, handler, job)
	if runErr == nil {
		if err := s.handle.MarkSuccess(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "failed to mark job succeeded", "job_id", job.ID, "error", err)
		}
		slog.InfoContext(ctx, "job completed successfully", "job_id", job.ID)
		return
	}

	attempt := job.Attempts + 1
	if attempt < job.MaxAttempts {
		delay := backoff.Delay(attempt, float64(s.cfg.BaseBackoffSecs))
		nextRunAt := time.Now().UTC().Add(delay)
		if err := s.handle.MarkFailure(ctx, job.ID, runErr.Error(), &nextRunAt, int(delay.Seconds())); err != nil {
			slog.ErrorContext(ctx, "failed to schedule retry", "job_id", job.ID, "error", err)
		}
		slog.WarnContext(ctx, "job failed, retry scheduled",
			"job_id", job.ID, "attempt", attempt, "delay", delay, "error", runErr)
		return
	}

	s.terminate(ctx, job, runErr.Error())
	slog.ErrorContext(ctx, "job exhausted retries, marked failed",
		"job_id", job.ID, "attempt", attempt, "error", runErr)
}

// terminate records a job as permanently failed and files it for operator
// review. The dead-letter write is best-effort bookkeeping: its failure
// does not reverse the jobs row's own terminal status.
func (s *Supervisor) terminate(ctx context.Context, job jobqueue.Job, errMsg string) {
	if err := s.handle.MarkFailure(ctx, job.ID, errMsg, nil, 0); err != nil {
		slog.ErrorContext(ctx, "failed to record terminal failure", "job_id", job.ID, "error", err)
	}
	if err := s.handle.MoveToDeadLetter(ctx, job, errMsg); err != nil {
		slog.ErrorContext(ctx, "failed to record dead letter entry", "job_id", job.ID, "error", err)
	}
}

// runHandler invokes a handler with panic recovery: a panic is converted
// into a plain error so one bad job can never take down the worker process.
func (s *Supervisor) runHandler(ctx context.Context, handler jobqueue.Handler, job jobqueue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v\n%s", r, debug.Stack())
		}
	}()

	tracer := otel.Tracer("capsule/supervisor")
	ctx, span := tracer.Start(ctx, "job."+job.Kind)
	defer span.End()

	return handler.Run(ctx, job.Payload, s.handle, span)
}
