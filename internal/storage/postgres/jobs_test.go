package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/corvid-labs/capsule/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// setupTestStore opens a store against TEST_DATABASE_URL, running migrations
// against it, and truncates the job tables before and after the test. It
// skips the test rather than failing when no test database is configured.
func setupTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, config.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)

	truncate := func() {
		store.pool.Exec(ctx, "TRUNCATE TABLE contents, items, jobs, dead_letter_jobs CASCADE")
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		store.Close()
	})

	return store, ctx
}

func TestEnqueueAndFetchDue_ClaimsOnlyDueJobs(t *testing.T) {
	store, ctx := setupTestStore(t)

	future := time.Now().Add(time.Hour)
	_, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), &future, nil)
	require.NoError(t, err)

	dueID, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), nil, nil)
	require.NoError(t, err)

	jobs, err := store.FetchDue(ctx, 10, uuid.New(), 300)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, dueID, jobs[0].ID)
	require.Equal(t, "running", string(jobs[0].Status))
	require.NotNil(t, jobs[0].VisibilityTill)
	require.NotNil(t, jobs[0].ReservedBy)
}

func TestFetchDue_DoesNotDoubleClaim(t *testing.T) {
	store, ctx := setupTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), nil, nil)
		require.NoError(t, err)
	}

	workerA, workerB := uuid.New(), uuid.New()
	a, err := store.FetchDue(ctx, 3, workerA, 300)
	require.NoError(t, err)
	b, err := store.FetchDue(ctx, 3, workerB, 300)
	require.NoError(t, err)

	require.Len(t, a, 3)
	require.Len(t, b, 2)

	seen := map[uuid.UUID]bool{}
	for _, j := range append(a, b...) {
		require.False(t, seen[j.ID], "job %s claimed twice", j.ID)
		seen[j.ID] = true
	}
}

func TestMarkFailure_BelowMaxAttemptsRequeues(t *testing.T) {
	store, ctx := setupTestStore(t)

	id, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), nil, nil)
	require.NoError(t, err)

	jobs, err := store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	nextRun := time.Now().Add(30 * time.Second)
	require.NoError(t, store.MarkFailure(ctx, id, "boom", &nextRun, 30))

	jobs, err = store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)
	require.Len(t, jobs, 0, "job should not be due again until its new run_at")
}

func TestMarkFailure_AtMaxAttemptsTerminates(t *testing.T) {
	store, ctx := setupTestStore(t)

	maxAttempts := 1
	id, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), nil, &maxAttempts)
	require.NoError(t, err)

	_, err = store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)

	require.NoError(t, store.MarkFailure(ctx, id, "permanent", nil, 0))

	jobs, err := store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)
	require.Len(t, jobs, 0, "failed jobs must never be claimed again")
}

func TestMarkSuccess_JobNeverClaimedAgain(t *testing.T) {
	store, ctx := setupTestStore(t)

	id, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), nil, nil)
	require.NoError(t, err)

	_, err = store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)
	require.NoError(t, store.MarkSuccess(ctx, id))

	jobs, err := store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)
	require.Len(t, jobs, 0)
}

func TestFetchDue_ReclaimsExpiredVisibility(t *testing.T) {
	store, ctx := setupTestStore(t)

	id, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), nil, nil)
	require.NoError(t, err)

	// Claim with a visibility timeout that has already elapsed.
	_, err = store.FetchDue(ctx, 1, uuid.New(), -1)
	require.NoError(t, err)

	jobs, err := store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, id, jobs[0].ID)
}

func TestExtendVisibility_NoopWhenNotRunning(t *testing.T) {
	store, ctx := setupTestStore(t)

	id, err := store.Enqueue(ctx, "example_job", json.RawMessage(`{}`), nil, nil)
	require.NoError(t, err)

	// Job is still queued, never claimed: extending visibility must not
	// promote it to running.
	require.NoError(t, store.ExtendVisibility(ctx, id, 600))

	jobs, err := store.FetchDue(ctx, 1, uuid.New(), 300)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}
