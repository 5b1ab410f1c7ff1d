package safety

import (
	"regexp"
	"strings"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tokenizer"
)

// piiPatterns masks personally identifiable information, in order.
// Order matters: RUC (11 digits) and phone (9 digits) must be checked
// before any shorter digit run could partially match them.
var piiPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b\d{11}\b`), "[RUC_REMOVED]"},
	{regexp.MustCompile(`\b\d{9}\b`), "[PHONE_REMOVED]"},
	{regexp.MustCompile(`\b\d{8}\b`), "[DNI_REMOVED]"},
	{regexp.MustCompile(`[\w.-]+@[\w.-]+`), "[EMAIL_REMOVED]"},
	{regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`), "[NAME_REMOVED]"},
}

var windowsPathPattern = regexp.MustCompile(`[A-Za-z]:\\[^\s]*`)
var posixPathPattern = regexp.MustCompile(`/(?:[\w.\-]+/)+[\w.\-]*`)
var tokenLikePattern = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)

// MaskPII applies PII masking, system-path stripping, and token-like
// string masking to text, in that order.
func MaskPII(text string) string {
	for _, p := range piiPatterns {
		text = p.pattern.ReplaceAllString(text, p.replacement)
	}
	text = windowsPathPattern.ReplaceAllString(text, "[PATH_REMOVED]")
	text = posixPathPattern.ReplaceAllString(text, "[PATH_REMOVED]")
	text = tokenLikePattern.ReplaceAllString(text, "[TOKEN_REMOVED]")
	return text
}

// safeMetadataFields is the fixed allowlist projected onto result
// metadata; every other field is dropped.
var safeMetadataFields = []string{"title", "date", "type", "category", "pages"}

// SanitizeMetadata projects metadata onto the safe-field allowlist and
// PII-masks every retained string value.
func SanitizeMetadata(metadata map[string]any) map[string]any {
	safe := make(map[string]any, len(safeMetadataFields))
	for _, field := range safeMetadataFields {
		v, ok := metadata[field]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			safe[field] = MaskPII(s)
		} else {
			safe[field] = v
		}
	}
	return safe
}

// RelevantChunk reports whether text meets the 8.c post-check bar: the
// fraction of non-stopword query words present in text is >= 0.3.
func RelevantChunk(queryText, text string) bool {
	queryWords := tokenizer.Tokenize(queryText)
	if len(queryWords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			matched++
		}
	}
	return float64(matched)/float64(len(queryWords)) >= 0.3
}

// PostCheck implements 8.c's relevance gate: if fewer than half of the
// given chunk texts are relevant to queryText, the caller must return
// the no-information notice instead of results.
func PostCheck(queryText string, chunkTexts []string) bool {
	if len(chunkTexts) == 0 {
		return false
	}
	relevant := 0
	for _, text := range chunkTexts {
		if RelevantChunk(queryText, text) {
			relevant++
		}
	}
	return float64(relevant) >= 0.5*float64(len(chunkTexts))
}
