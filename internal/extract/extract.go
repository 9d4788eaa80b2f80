// Package extract turns a fetched page into a cleaned, readable article
// representation, or rejects it. It never aborts on malformed input: any
// panic from an underlying parser is recovered and treated as a rejection.
package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corvid-labs/capsule/internal/fetch"
	readability "github.com/go-shiori/go-readability"
)

// Content is the cleaned, link-resolved, language-tagged result of a
// successful extraction.
type Content struct {
	URL       string
	Title     string
	SiteName  *string
	Byline    *string
	Language  *string
	Text      string
	HTML      string
	FetchedAt time.Time
}

// minContainerTextLength is the threshold a fallback content container must
// clear before it is accepted over the raw <body>.
const minContainerTextLength = 100

// fallbackContainerSelectors are tried in order; the first container whose
// text exceeds minContainerTextLength wins.
var fallbackContainerSelectors = []string{
	"article", "main", "[role=main]", ".content", ".post", ".article",
	"#content", "#main", ".entry-content",
}

// Extract runs the readability pipeline against a fetched page. It returns
// nil if the page is rejected (too short, untitled boilerplate, etc) or if
// the page cannot be parsed at all. It never panics.
func Extract(page *fetch.PageResponse) (result *Content) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
		}
	}()

	baseURL, err := url.Parse(page.FinalURL)
	if err != nil {
		return nil
	}

	title, siteName, byline, html, text := readabilityPass(page.Text, baseURL)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(page.Text))
	if siteName == "" && docErr == nil {
		siteName = extractSiteName(doc, title)
	}

	sanitized := sanitizeHTML(html)
	resolved := resolveLinks(sanitized, baseURL)
	cleanText := normalizeWhitespace(text)

	if shouldReject(title, cleanText) {
		return nil
	}

	content := &Content{
		URL:       page.FinalURL,
		Title:     title,
		Text:      cleanText,
		HTML:      resolved,
		FetchedAt: page.FetchedAt,
	}
	if siteName != "" {
		content.SiteName = &siteName
	}
	if byline != "" {
		content.Byline = &byline
	}
	if lang, ok := detectLanguage(cleanText); ok {
		content.Language = &lang
	}
	return content
}

// readabilityPass runs the Readability-style extraction and falls back to a
// heuristic container search when it fails.
func readabilityPass(rawHTML string, baseURL *url.URL) (title, siteName, byline, html, text string) {
	article, err := readability.FromReader(strings.NewReader(rawHTML), baseURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.Title, article.SiteName, article.Byline, article.Content, article.TextContent
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if docErr != nil {
		return "", "", "", "", ""
	}

	title = fallbackTitle(doc)
	html = fallbackContent(doc)
	text = strings.TrimSpace(textOf(html))
	return title, "", "", html, text
}

// textOf returns the plain text of an HTML fragment, tolerating malformed
// markup by returning an empty string rather than failing.
func textOf(htmlFragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlFragment))
	if err != nil {
		return ""
	}
	return doc.Text()
}

func fallbackTitle(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		return v
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func fallbackContent(doc *goquery.Document) string {
	for _, selector := range fallbackContainerSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if len(strings.TrimSpace(sel.Text())) > minContainerTextLength {
			if h, err := sel.Html(); err == nil {
				return h
			}
		}
	}
	if h, err := doc.Find("body").First().Html(); err == nil {
		return h
	}
	return ""
}

// extractSiteName prefers og:site_name, then falls back to a title suffix
// after " - " or " | ".
func extractSiteName(doc *goquery.Document, title string) string {
	if v, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	for _, sep := range []string{" - ", " | "} {
		if idx := strings.LastIndex(title, sep); idx != -1 {
			return strings.TrimSpace(title[idx+len(sep):])
		}
	}
	return ""
}
