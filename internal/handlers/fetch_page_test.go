package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-labs/capsule/internal/jobqueue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type fakeFetchHandle struct {
	url               string
	urlErr            error
	rawHTML, checksum string
	extractedHTML     string
	extractedText     string
	fetched           bool
	upsertErr         error
}

func (f *fakeFetchHandle) Enqueue(ctx context.Context, kind string, payload json.RawMessage, runAt *time.Time, maxAttempts *int) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (f *fakeFetchHandle) FetchDue(ctx context.Context, limit int, workerID uuid.UUID, visibilitySecs int) ([]jobqueue.Job, error) {
	return nil, nil
}
func (f *fakeFetchHandle) MarkSuccess(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeFetchHandle) MarkFailure(ctx context.Context, id uuid.UUID, errMsg string, nextRunAt *time.Time, backoffSeconds int) error {
	return nil
}
func (f *fakeFetchHandle) ExtendVisibility(ctx context.Context, id uuid.UUID, visibilitySecs int) error {
	return nil
}
func (f *fakeFetchHandle) ItemURL(ctx context.Context, itemID string) (string, error) {
	return f.url, f.urlErr
}
func (f *fakeFetchHandle) UpsertContent(ctx context.Context, itemID, rawHTML, checksum string) error {
	f.rawHTML, f.checksum = rawHTML, checksum
	return f.upsertErr
}
func (f *fakeFetchHandle) UpsertExtractedContent(ctx context.Context, itemID, cleanHTML, cleanText string, lang *string, checksum string) error {
	f.extractedHTML, f.extractedText = cleanHTML, cleanText
	return nil
}
func (f *fakeFetchHandle) MarkItemFetched(ctx context.Context, itemID string) error {
	f.fetched = true
	return nil
}
func (f *fakeFetchHandle) MoveToDeadLetter(ctx context.Context, job jobqueue.Job, errMsg string) error {
	return nil
}

func articleBody() string {
	var b strings.Builder
	b.WriteString("<html><head><title>A real article</title></head><body><article>")
	for i := 0; i < 40; i++ {
		b.WriteString("<p>This is a long enough sentence to count as real article content for extraction purposes. </p>")
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

func TestFetchPageHandler_Kind(t *testing.T) {
	assert.Equal(t, "fetch_page", NewFetchPageHandler().Kind())
}

func TestFetchPageHandler_FetchesAndStoresContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleBody()))
	}))
	defer srv.Close()

	handle := &fakeFetchHandle{url: srv.URL}
	h := NewFetchPageHandler()
	payload, _ := json.Marshal(FetchPagePayload{ItemID: "item-1"})

	err := h.Run(context.Background(), payload, handle, trace.SpanFromContext(context.Background()))
	require.NoError(t, err)

	assert.NotEmpty(t, handle.rawHTML)
	assert.NotEmpty(t, handle.checksum)
	assert.True(t, handle.fetched)
	assert.Contains(t, handle.extractedText, "long enough sentence")
}

func TestFetchPageHandler_ShortPageSkipsExtractionWithoutFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>too short</body></html>"))
	}))
	defer srv.Close()

	handle := &fakeFetchHandle{url: srv.URL}
	h := NewFetchPageHandler()
	payload, _ := json.Marshal(FetchPagePayload{ItemID: "item-2"})

	err := h.Run(context.Background(), payload, handle, trace.SpanFromContext(context.Background()))
	require.NoError(t, err)
	assert.True(t, handle.fetched)
	assert.Empty(t, handle.extractedText)
}

func TestFetchPageHandler_FetchFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	handle := &fakeFetchHandle{url: srv.URL}
	h := NewFetchPageHandler()
	payload, _ := json.Marshal(FetchPagePayload{ItemID: "item-3"})

	err := h.Run(context.Background(), payload, handle, trace.SpanFromContext(context.Background()))
	assert.Error(t, err)
	assert.False(t, handle.fetched)
}

func TestFetchPageHandler_UnknownItemReturnsError(t *testing.T) {
	handle := &fakeFetchHandle{urlErr: assert.AnError}
	h := NewFetchPageHandler()
	payload, _ := json.Marshal(FetchPagePayload{ItemID: "missing"})

	err := h.Run(context.Background(), payload, handle, trace.SpanFromContext(context.Background()))
	assert.Error(t, err)
}
