// Package fetch retrieves a single remote page under hard bounds on time,
// size, redirects, and content type, and decodes its body to UTF-8 text.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/corvid-labs/capsule/internal/charset"
)

const (
	// MaxBodyBytes is the hard cap on both the declared Content-Length and
	// the actually downloaded body size.
	MaxBodyBytes = 5 * 1024 * 1024

	connectTimeout = 10 * time.Second
	overallTimeout = 30 * time.Second
	maxRedirects   = 10

	userAgent    = "capsule-content-fetcher/1.0 (+https://github.com/corvid-labs/capsule)"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// errTooManyRedirects marks a redirect-limit violation so it can be
// recognized by errors.Is after being wrapped by net/http's url.Error.
var errTooManyRedirects = errors.New("fetch: stopped after too many redirects")

var (
	clientOnce sync.Once
	httpClient *http.Client
)

// client returns the process-wide shared HTTP client, built once on first
// use. Constructing a fresh client per request would defeat connection
// pooling; this component is intentionally a lazily-initialized singleton.
func client() *http.Client {
	clientOnce.Do(func() {
		dialer := &net.Dialer{Timeout: connectTimeout}
		httpClient = &http.Client{
			Timeout: overallTimeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		}
	})
	return httpClient
}

// PageResponse is the result of a successful fetch.
type PageResponse struct {
	FinalURL  string
	Status    int
	Header    http.Header
	RawBody   []byte
	Text      string
	Charset   string
	FetchedAt time.Time
}

// Fetch issues a bounded GET against rawURL and returns the decoded page, or
// a classified *Error describing why it failed.
func Fetch(ctx context.Context, rawURL string) (*PageResponse, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &Error{Kind: KindInvalidURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := client().Do(req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > MaxBodyBytes {
		return nil, &Error{Kind: KindBodyTooLarge}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAcceptedContentType(contentType) {
		return nil, &Error{Kind: KindUnsupportedContentType}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, &Error{Kind: KindIO, Err: err}
	}
	if len(raw) > MaxBodyBytes {
		return nil, &Error{Kind: KindBodyTooLarge}
	}

	tag := charset.Detect(contentType, raw)
	text, err := charset.Decode(tag, raw)
	if err != nil {
		return nil, &Error{Kind: KindCharset, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &PageResponse{
		FinalURL:  finalURL,
		Status:    resp.StatusCode,
		Header:    resp.Header,
		RawBody:   raw,
		Text:      text,
		Charset:   tag,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func isAcceptedContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || strings.HasPrefix(mediaType, "application/xhtml")
}

func classifyRequestError(err error) *Error {
	if errors.Is(err, errTooManyRedirects) {
		return &Error{Kind: KindRedirectLoop, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if errors.Is(urlErr.Err, errTooManyRedirects) {
			return &Error{Kind: KindRedirectLoop, Err: err}
		}

		var dnsErr *net.DNSError
		if errors.As(urlErr.Err, &dnsErr) {
			return &Error{Kind: KindDNS, Err: err}
		}

		var certErr *tls.CertificateVerificationError
		if errors.As(urlErr.Err, &certErr) {
			return &Error{Kind: KindTLS, Err: err}
		}
		var recordErr tls.RecordHeaderError
		if errors.As(urlErr.Err, &recordErr) {
			return &Error{Kind: KindTLS, Err: err}
		}

		if urlErr.Timeout() {
			var netErr net.Error
			if errors.As(urlErr.Err, &netErr) && strings.Contains(urlErr.Err.Error(), "connect") {
				return &Error{Kind: KindConnectTimeout, Err: err}
			}
			return &Error{Kind: KindRequestTimeout, Err: err}
		}
	}

	return &Error{Kind: KindUnknown, Err: fmt.Errorf("%w", err)}
}
