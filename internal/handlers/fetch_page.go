package handlers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corvid-labs/capsule/internal/extract"
	"github.com/corvid-labs/capsule/internal/fetch"
	"github.com/corvid-labs/capsule/internal/jobqueue"
	"go.opentelemetry.io/otel/trace"
)

// FetchPagePayload is the payload for FetchPageHandler.
type FetchPagePayload struct {
	ItemID string `json:"item_id"`
}

// FetchPageHandler fetches the page at an item's URL, extracts its content,
// and persists it. Retriability is computed for logging only: whether the
// job is retried is decided uniformly by the supervisor's attempt-count
// rule, not by this handler's classification of the failure.
type FetchPageHandler struct{}

// NewFetchPageHandler builds a FetchPageHandler factory for registration.
func NewFetchPageHandler() jobqueue.Handler { return FetchPageHandler{} }

func (FetchPageHandler) Kind() string { return "fetch_page" }

func (FetchPageHandler) Run(ctx context.Context, raw json.RawMessage, handle jobqueue.Handle, span trace.Span) error {
	var payload FetchPagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("fetch_page: decode payload: %w", err)
	}

	url, err := handle.ItemURL(ctx, payload.ItemID)
	if err != nil {
		return fmt.Errorf("fetch_page: item %s: %w", payload.ItemID, err)
	}

	slog.InfoContext(ctx, "fetching content for item", "item_id", payload.ItemID, "url", url)

	page, fetchErr := fetch.Fetch(ctx, url)
	if fetchErr != nil {
		retriable := false
		if ferr, ok := fetchErr.(*fetch.Error); ok {
			retriable = ferr.Retriable()
		}
		slog.WarnContext(ctx, "failed to fetch content",
			"item_id", payload.ItemID, "error", fetchErr, "retriable", retriable)
		return fmt.Errorf("fetch_page: fetch %s: %w", url, fetchErr)
	}

	slog.InfoContext(ctx, "fetched content",
		"item_id", payload.ItemID, "final_url", page.FinalURL, "status", page.Status, "charset", page.Charset)

	checksum := checksumOf(page.RawBody)
	if err := handle.UpsertContent(ctx, payload.ItemID, page.Text, checksum); err != nil {
		return fmt.Errorf("fetch_page: upsert content for item %s: %w", payload.ItemID, err)
	}

	if err := handle.MarkItemFetched(ctx, payload.ItemID); err != nil {
		return fmt.Errorf("fetch_page: mark item %s fetched: %w", payload.ItemID, err)
	}

	// Run extraction opportunistically; extraction rejections are not fetch
	// failures, so they never turn this job into a retry.
	if content := extract.Extract(page); content != nil {
		extractedChecksum := checksumOf([]byte(content.HTML + content.Text))
		if err := handle.UpsertExtractedContent(ctx, payload.ItemID, content.HTML, content.Text, content.Language, extractedChecksum); err != nil {
			slog.WarnContext(ctx, "failed to store extracted content", "item_id", payload.ItemID, "error", err)
		} else {
			slog.InfoContext(ctx, "extracted article content",
				"item_id", payload.ItemID, "title", content.Title, "chars", len(content.Text))
		}
	} else {
		slog.InfoContext(ctx, "extraction rejected page", "item_id", payload.ItemID)
	}

	slog.InfoContext(ctx, "stored content for item", "item_id", payload.ItemID)
	return nil
}

func checksumOf(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}
