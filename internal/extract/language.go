package extract

import "github.com/abadojack/whatlanggo"

const (
	minLanguageTextLength = 50
	minLanguageConfidence = 0.25
)

// detectLanguage returns a short BCP-47-style code (e.g. "en", "ru", "zh")
// for text, or (_, false) if the text is too short or the detector isn't
// confident enough. whatlanggo reports ISO 639-1 codes directly, unlike the
// whatlang crate this mirrors, which needed a manual ISO-639-3-to-short-code
// table.
func detectLanguage(text string) (string, bool) {
	if len(text) < minLanguageTextLength {
		return "", false
	}

	info := whatlanggo.Detect(text)
	if info.Confidence < minLanguageConfidence {
		return "", false
	}

	code := info.Lang.Iso6391()
	if code == "" {
		return "", false
	}
	return code, true
}
