// Package cli provides terminal output formatting for search results.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/retrieval"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one result per line (compact text).
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes response to w in the given format.
func WriteSearchResults(w io.Writer, response *retrieval.Response, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *retrieval.Response) {
	if response.Notice != "" {
		fmt.Fprintln(w, response.Notice)
		return
	}
	fmt.Fprintf(w, "\nFound %d results\n\n", len(response.Results))
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Method: %s\n", i+1, result.Score, result.Method)
		if result.SearchVariant != "" {
			fmt.Fprintf(w, "Variant: %s\n", result.SearchVariant)
		}
		fmt.Fprintf(w, "\n%s\n\n", Truncate(result.Text, 300))
	}
}

// writeSearchResultsCompact writes one result per line (rank, score, method).
func writeSearchResultsCompact(w io.Writer, response *retrieval.Response) {
	if response.Notice != "" {
		fmt.Fprintln(w, SanitizeForLine(response.Notice))
		return
	}
	fmt.Fprintf(w, "Found %d results\n", len(response.Results))
	for i, result := range response.Results {
		fmt.Fprintf(w, "#%d %.4f [%s] | %s\n", i+1, result.Score, result.Method, Truncate(SanitizeForLine(result.Text), 80))
	}
}

// SanitizeForLine replaces newlines and tabs with spaces for single-line output.
func SanitizeForLine(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "\t", " "))
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *retrieval.Response) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
