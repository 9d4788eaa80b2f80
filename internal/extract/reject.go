package extract

import "strings"

const (
	minContentLength    = 250
	minWordCount        = 50
	maxBoilerplateRatio = 0.3
)

// boilerplateKeywords covers consent/privacy/navigation chrome; matched
// case-insensitively as substrings against the cleaned text.
var boilerplateKeywords = []string{
	"cookie", "privacy", "terms", "service", "policy", "gdpr", "consent",
	"accept", "decline", "subscribe", "newsletter", "login", "sign up",
	"register", "404", "loading", "click here", "read more", "learn more",
}

// shouldReject implements the rejection rules: too short, untitled
// boilerplate, or dominated by chrome keywords.
func shouldReject(title, text string) bool {
	if len(text) < minContentLength {
		return true
	}

	words := strings.Fields(text)
	wordCount := len(words)

	if strings.TrimSpace(title) == "" && wordCount < minWordCount {
		return true
	}

	if wordCount == 0 {
		return true
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range boilerplateKeywords {
		hits += strings.Count(lower, kw)
	}
	ratio := float64(hits) / float64(wordCount)
	return ratio > maxBoilerplateRatio
}
