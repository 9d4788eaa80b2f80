package fetch

import "fmt"

// ErrorKind classifies a fetch failure for the purpose of retry decisions.
type ErrorKind string

const (
	KindInvalidURL             ErrorKind = "invalid_url"
	KindDNS                    ErrorKind = "dns"
	KindTLS                    ErrorKind = "tls"
	KindConnectTimeout         ErrorKind = "connect_timeout"
	KindRequestTimeout         ErrorKind = "request_timeout"
	KindRedirectLoop           ErrorKind = "redirect_loop"
	KindHTTP                   ErrorKind = "http"
	KindBodyTooLarge           ErrorKind = "body_too_large"
	KindUnsupportedContentType ErrorKind = "unsupported_content_type"
	KindCharset                ErrorKind = "charset"
	KindIO                     ErrorKind = "io"
	KindUnknown                ErrorKind = "unknown"
)

// Error is the error type returned by Fetch. Status is only meaningful when
// Kind is KindHTTP.
type Error struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("fetch: http status %d", e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retriable reports whether the supervisor's retry policy should consider
// this failure transient. Per the fetch-page handler's contract this value
// is computed and logged but does not itself short-circuit retries: the
// worker supervisor always applies the uniform attempt-count rule.
func (e *Error) Retriable() bool {
	switch e.Kind {
	case KindDNS, KindTLS, KindConnectTimeout, KindRequestTimeout, KindRedirectLoop, KindIO, KindUnknown:
		return true
	case KindHTTP:
		return e.Status >= 500 && e.Status < 600
	case KindInvalidURL, KindBodyTooLarge, KindUnsupportedContentType, KindCharset:
		return false
	default:
		return false
	}
}
