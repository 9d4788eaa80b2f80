package postgres

import (
	"encoding/json"
	"testing"

	"github.com/corvid-labs/capsule/internal/jobqueue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMoveToDeadLetter_RecordedAndListed(t *testing.T) {
	store, ctx := setupTestStore(t)

	job := jobqueue.Job{ID: uuid.New(), Kind: "fetch_page", Payload: json.RawMessage(`{"item_id":"x"}`), Attempts: 25}
	require.NoError(t, store.MoveToDeadLetter(ctx, job, "exhausted retries"))

	entries, err := store.ListDeadLetterJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, job.ID, entries[0].OriginalJobID)
	require.Equal(t, "exhausted retries", entries[0].ErrorMessage)
	require.False(t, entries[0].Discarded)
}

func TestDiscardDeadLetterJob_RemovesFromPendingList(t *testing.T) {
	store, ctx := setupTestStore(t)

	job := jobqueue.Job{ID: uuid.New(), Kind: "fetch_page", Payload: json.RawMessage(`{}`), Attempts: 25}
	require.NoError(t, store.MoveToDeadLetter(ctx, job, "boom"))

	entries, err := store.ListDeadLetterJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.DiscardDeadLetterJob(ctx, entries[0].ID, "ops@example.com"))

	entries, err = store.ListDeadLetterJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 0)
}

func TestDiscardDeadLetterJob_UnknownIDReturnsNotFound(t *testing.T) {
	store, ctx := setupTestStore(t)

	err := store.DiscardDeadLetterJob(ctx, uuid.New(), "ops@example.com")
	require.ErrorIs(t, err, ErrJobNotFound)
}
