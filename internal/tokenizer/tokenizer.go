// Package tokenizer normalizes and tokenizes Spanish-language text for the
// lexical indexes (BM25, TF-IDF). The same function is used at build time
// and at query time; any divergence between the two invalidates the indexes.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLength is the minimum token length kept after filtering.
const MinTokenLength = 2

// diacriticFold strips NFD combining marks (category Mn), leaving the base
// letter. Built once; Tokenize is a pure function of its input plus this
// frozen transform and the frozen stopword set.
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stopwords is the frozen Spanish stopword list. Closed set, ~40 entries.
var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"y": {}, "o": {}, "a": {}, "ante": {}, "bajo": {}, "con": {}, "de": {}, "desde": {},
	"en": {}, "entre": {}, "hacia": {}, "hasta": {}, "para": {}, "por": {}, "segun": {},
	"sin": {}, "sobre": {}, "tras": {}, "es": {}, "son": {}, "cual": {}, "cuales": {},
	"como": {}, "que": {}, "donde": {}, "cuando": {}, "cuanto": {}, "del": {}, "al": {},
	"su": {}, "sus": {}, "se": {}, "le": {}, "lo": {},
}

// Tokenize turns text into an ordered sequence of lowercase, diacritic-free,
// stopword-free tokens of length >= MinTokenLength. Steps, in order:
// NFD-decompose and strip combining marks, lowercase, replace any
// non-letter/non-digit/non-whitespace code point with a space, collapse
// whitespace, split on whitespace, drop stopwords, drop short tokens.
func Tokenize(text string) []string {
	folded, _, err := transform.String(diacriticFold, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) < MinTokenLength {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Join rejoins tokens with single spaces, used by the idempotence property
// (Tokenize(Join(Tokenize(x))) == Tokenize(x)).
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}
