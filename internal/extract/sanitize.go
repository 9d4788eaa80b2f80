package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizePolicy strips script/style/event-handler content while allowing
// the structural and inline-formatting elements a readable article needs.
// UGCPolicy is bluemonday's baseline allowlist for user/third-party HTML,
// already covering href on <a> and src on <img>.
var sanitizePolicy = bluemonday.UGCPolicy()

func sanitizeHTML(rawHTML string) string {
	return sanitizePolicy.Sanitize(rawHTML)
}

var (
	hrefRe = regexp.MustCompile(`(?i)(href)=["']([^"']*)["']`)
	srcRe  = regexp.MustCompile(`(?i)(src)=["']([^"']*)["']`)
)

// resolveLinks rewrites relative href/src attribute values to absolute URLs
// using base as the reference. Values that don't parse as URLs are left
// untouched rather than dropped.
func resolveLinks(sanitizedHTML string, base *url.URL) string {
	resolve := func(match string, re *regexp.Regexp) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		attr, value := parts[1], parts[2]
		resolved, err := base.Parse(value)
		if err != nil {
			return match
		}
		return attr + `="` + resolved.String() + `"`
	}

	out := hrefRe.ReplaceAllStringFunc(sanitizedHTML, func(m string) string { return resolve(m, hrefRe) })
	out = srcRe.ReplaceAllStringFunc(out, func(m string) string { return resolve(m, srcRe) })
	return out
}

var (
	spaceTabRunRe  = regexp.MustCompile(`[ \t]+`)
	blankLinesRe   = regexp.MustCompile(`\n[ \t]*\n(\s*\n)*`)
	trailingSpacer = regexp.MustCompile(`[ \t]+\n`)
)

// normalizeWhitespace trims the text, collapses runs of spaces/tabs to a
// single space, and collapses runs of blank lines to exactly two newlines.
func normalizeWhitespace(text string) string {
	t := strings.TrimSpace(text)
	t = trailingSpacer.ReplaceAllString(t, "\n")
	t = spaceTabRunRe.ReplaceAllString(t, " ")
	t = blankLinesRe.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}
