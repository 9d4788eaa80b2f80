// Package charset detects the character encoding of an HTML document and
// decodes it to UTF-8 text. Detection follows a fixed priority order: the
// Content-Type header, <meta charset>, <meta http-equiv>, then a statistical
// fallback, each consulted only if the previous step found nothing.
package charset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// sniffWindow is the number of leading bytes inspected by the meta-tag and
// statistical detection steps.
const sniffWindow = 4096

// Known charset tags. Anything that doesn't map to one of these is reported
// as Other(name).
const (
	UTF8         = "UTF-8"
	Windows1252  = "Windows-1252" // subsumes ISO-8859-1 / Latin-1, per WHATWG
	ShiftJIS     = "Shift_JIS"
	GBK          = "GBK"
	Big5         = "Big5"
	otherPrefix  = "other("
	otherSuffix  = ")"
)

// Other builds the generic tag used for a charset label that doesn't map to
// one of the known tags.
func Other(label string) string {
	return otherPrefix + label + otherSuffix
}

// ErrCharset is returned when the buffer cannot be decoded under the
// detected charset without loss (an unrepresentable byte was found). The
// component never silently substitutes replacement characters.
var ErrCharset = errors.New("charset: decode error")

var (
	metaCharsetRe   = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-zA-Z0-9_\-]+)["']?`)
	metaHTTPEquivRe = regexp.MustCompile(`(?i)<meta[^>]+http-equiv\s*=\s*["']content-type["'][^>]*content\s*=\s*["'][^"']*charset\s*=\s*([a-zA-Z0-9_\-]+)`)
	headerCharsetRe = regexp.MustCompile(`(?i)charset\s*=\s*"?([a-zA-Z0-9_\-]+)"?`)
)

// Detect determines the charset tag for a document given its Content-Type
// header value (may be empty) and its raw bytes. It never returns an error.
// The first step that finds a label wins, even if the label is not one of
// the known tags (it is then returned as Other(label)). When no step finds
// anything and the statistical detector fails, the result is UTF-8.
func Detect(contentType string, body []byte) string {
	if label, ok := fromHeader(contentType); ok {
		return normalize(label)
	}

	window := body
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}

	if m := metaCharsetRe.FindSubmatch(window); m != nil {
		return normalize(string(m[1]))
	}

	if m := metaHTTPEquivRe.FindSubmatch(window); m != nil {
		return normalize(string(m[1]))
	}

	return statisticalDetect(window)
}

func fromHeader(contentType string) (string, bool) {
	if contentType == "" {
		return "", false
	}
	m := headerCharsetRe.FindStringSubmatch(contentType)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func statisticalDetect(window []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(window)
	if err != nil || result == nil {
		return UTF8
	}
	return normalize(result.Charset)
}

// normalize maps a raw charset label (from a header, a meta tag, or a
// statistical detector) onto one of the known tags.
func normalize(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "utf-8", "utf8":
		return UTF8
	case "windows-1252", "cp1252", "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return Windows1252
	case "shift_jis", "shift-jis", "sjis", "shiftjis":
		return ShiftJIS
	case "gbk", "gb2312", "gb18030":
		return GBK
	case "big5", "big-5":
		return Big5
	default:
		if label == "" {
			return UTF8
		}
		return Other(label)
	}
}

// Decode decodes the full buffer using the charset tag produced by Detect.
// It returns ErrCharset if the buffer contains a byte sequence that cannot
// be faithfully represented in the source encoding.
func Decode(tag string, body []byte) (string, error) {
	if tag == UTF8 {
		if !utf8.Valid(body) {
			return "", fmt.Errorf("%w: invalid UTF-8 byte sequence", ErrCharset)
		}
		return string(body), nil
	}

	enc, err := encodingFor(tag)
	if err != nil {
		return "", err
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCharset, err)
	}
	if containsReplacementRune(decoded) {
		return "", fmt.Errorf("%w: unrepresentable byte sequence for %s", ErrCharset, tag)
	}
	return string(decoded), nil
}

func encodingFor(tag string) (encoding.Encoding, error) {
	switch tag {
	case Windows1252:
		return charmap.Windows1252, nil
	case ShiftJIS:
		return japanese.ShiftJIS, nil
	case GBK:
		return simplifiedchinese.GB18030, nil
	case Big5:
		return traditionalchinese.Big5, nil
	default:
		if strings.HasPrefix(tag, otherPrefix) && strings.HasSuffix(tag, otherSuffix) {
			label := tag[len(otherPrefix) : len(tag)-len(otherSuffix)]
			return encodingByLabel(label)
		}
		return nil, fmt.Errorf("%w: unknown charset tag %q", ErrCharset, tag)
	}
}

// encodingByLabel resolves a charset label that fell outside the known tags
// (the "other(name)" case) using the WHATWG encoding label registry.
func encodingByLabel(label string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: unrecognized label %q: %v", ErrCharset, label, err)
	}
	return enc, nil
}

func containsReplacementRune(b []byte) bool {
	return strings.ContainsRune(string(b), utf8.RuneError)
}
