package jobqueue

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/trace"
)

// Handle is the capability surface a Handler gets at execution time: the
// durable store (for visibility extension on long-running work) plus the
// pool-backed accessor handlers need for side effects outside the jobs table
// itself. It is implemented by internal/storage/postgres.Store.
type Handle interface {
	Store
	ItemURL(ctx context.Context, itemID string) (string, error)
	UpsertContent(ctx context.Context, itemID, rawHTML, checksum string) error
	UpsertExtractedContent(ctx context.Context, itemID, cleanHTML, cleanText string, lang *string, checksum string) error
	MarkItemFetched(ctx context.Context, itemID string) error
	MoveToDeadLetter(ctx context.Context, job Job, errMsg string) error
}

// Handler executes one job kind. The registry calls the kind's Factory for
// every dispatched job, so each job runs on whatever value the factory
// returns.
type Handler interface {
	Kind() string
	Run(ctx context.Context, payload json.RawMessage, handle Handle, span trace.Span) error
}

// Factory builds a Handler for a given kind. Registered factories are
// invoked once per dispatch; most implementations just return a shared,
// stateless Handler value.
type Factory func() Handler
