package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Content is a stored item's extracted article, as read back by GetContent.
type Content struct {
	ItemID    string
	RawHTML   *string
	CleanHTML *string
	CleanText *string
	Lang      *string
	Checksum  *string
}

// ItemURL returns the URL for an item. Its SELECT ... FOR UPDATE runs on the
// pool outside an explicit transaction, so the row lock is released when the
// statement completes; it does not hold off a concurrent fetch_page job for
// the same item. ErrJobNotFound is returned if the item does not exist.
func (s *Store) ItemURL(ctx context.Context, itemID string) (string, error) {
	var url string
	err := s.pool.QueryRow(ctx, `SELECT url FROM items WHERE id = $1 FOR UPDATE`, itemID).Scan(&url)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("postgres: item %s: %w", itemID, ErrJobNotFound)
		}
		return "", fmt.Errorf("postgres: item url %s: %w", itemID, err)
	}
	return url, nil
}

// UpsertContent stores the raw fetched HTML for an item, short-circuiting
// the write if checksum matches what's already stored.
func (s *Store) UpsertContent(ctx context.Context, itemID, rawHTML, checksum string) error {
	var existing *string
	err := s.pool.QueryRow(ctx, `SELECT checksum FROM contents WHERE item_id = $1`, itemID).Scan(&existing)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("postgres: read content checksum %s: %w", itemID, err)
	}
	if existing != nil && *existing == checksum {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO contents (item_id, raw_html, extracted_at, checksum)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (item_id) DO UPDATE
		SET raw_html = EXCLUDED.raw_html,
		    extracted_at = EXCLUDED.extracted_at,
		    checksum = EXCLUDED.checksum
	`, itemID, rawHTML, checksum)
	if err != nil {
		return fmt.Errorf("postgres: upsert content %s: %w", itemID, err)
	}
	return nil
}

// UpsertExtractedContent stores the cleaned article produced by the
// extractor, again short-circuiting on a matching checksum computed over
// the clean HTML and text together.
func (s *Store) UpsertExtractedContent(ctx context.Context, itemID, cleanHTML, cleanText string, lang *string, checksum string) error {
	var existing *string
	err := s.pool.QueryRow(ctx, `SELECT checksum FROM contents WHERE item_id = $1`, itemID).Scan(&existing)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("postgres: read content checksum %s: %w", itemID, err)
	}
	if existing != nil && *existing == checksum {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO contents (item_id, clean_html, clean_text, lang, extracted_at, checksum)
		VALUES ($1, $2, $3, $4, now(), $5)
		ON CONFLICT (item_id) DO UPDATE
		SET clean_html = EXCLUDED.clean_html,
		    clean_text = EXCLUDED.clean_text,
		    lang = EXCLUDED.lang,
		    extracted_at = EXCLUDED.extracted_at,
		    checksum = EXCLUDED.checksum
	`, itemID, cleanHTML, cleanText, lang, checksum)
	if err != nil {
		return fmt.Errorf("postgres: upsert extracted content %s: %w", itemID, err)
	}
	return nil
}

// GetContent returns the stored content for an item, or nil if none exists.
func (s *Store) GetContent(ctx context.Context, itemID string) (*Content, error) {
	var c Content
	c.ItemID = itemID
	err := s.pool.QueryRow(ctx, `
		SELECT raw_html, clean_html, clean_text, lang, checksum
		FROM contents WHERE item_id = $1
	`, itemID).Scan(&c.RawHTML, &c.CleanHTML, &c.CleanText, &c.Lang, &c.Checksum)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get content %s: %w", itemID, err)
	}
	return &c, nil
}

// MarkItemFetched flips an item's status once its raw content has landed.
func (s *Store) MarkItemFetched(ctx context.Context, itemID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE items SET status = 'fetched', updated_at = now() WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("postgres: mark item fetched %s: %w", itemID, err)
	}
	return nil
}
