// Package queryexpand implements the query expander (C6): a small,
// closed set of deterministic rules that turn a sanitized query into an
// ordered list of search variants, grounded on the source system's
// number-normalization and search-variant generation rules.
package queryexpand

import (
	"regexp"
	"strings"
)

// MaxVariants is the hard cap on the number of variants returned.
const MaxVariants = 8

var decimalCommaPattern = regexp.MustCompile(`(\d+),(\d{2})`)

var currencyAmountPattern = regexp.MustCompile(`S/\s*(\d+(?:[.,]\d{2})?)`)

var intentWords = []string{"monto", "cantidad", "precio", "tarifa"}

var intentSeeds = []string{"escala viáticos", "viático por día"}

// Expand turns a sanitized query into an ordered, deduplicated list of
// variants, length in [1, 8]. The original query is always variant 0.
// Rules are applied in order and are closed: no variant is invented
// outside decimal normalization, numeric-anchor expansion, and
// intent-seed expansion.
func Expand(sanitizedQuery string) []string {
	variants := []string{sanitizedQuery}

	if normalized := normalizeDecimal(sanitizedQuery); normalized != sanitizedQuery {
		variants = append(variants, normalized)
	}

	if m := currencyAmountPattern.FindStringSubmatch(sanitizedQuery); m != nil {
		whole, withDecimal := amountStyles(m[1])
		variants = append(variants,
			"S/ "+whole,
			"S/ "+withDecimal,
			whole,
			withDecimal,
			"viático día",
			"escala viáticos",
		)
	}

	lower := strings.ToLower(sanitizedQuery)
	for _, word := range intentWords {
		if strings.Contains(lower, word) {
			variants = append(variants, intentSeeds...)
			break
		}
	}

	return dedupAndTruncate(variants)
}

// normalizeDecimal converts Peruvian-style decimal commas to the
// international decimal point: "320,00" becomes "320.00".
func normalizeDecimal(text string) string {
	return decimalCommaPattern.ReplaceAllString(text, "$1.$2")
}

// amountStyles returns amount rendered without a fractional part and
// with its two-decimal fractional part (".00" when amount has none),
// both using the international decimal point.
func amountStyles(amount string) (withoutDecimal, withDecimal string) {
	normalized := strings.Replace(amount, ",", ".", 1)
	if idx := strings.IndexByte(normalized, '.'); idx >= 0 {
		return normalized[:idx], normalized
	}
	return normalized, normalized + ".00"
}

func dedupAndTruncate(variants []string) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == MaxVariants {
			break
		}
	}
	return out
}
