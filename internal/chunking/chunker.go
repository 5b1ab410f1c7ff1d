// Package chunking splits raw document text into overlapping word windows
// ahead of indexing, adapted from the source system's offline chunking
// stage (previously tied to a live indexer; here it only ever feeds the
// artifact builder, never a request path).
package chunking

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Window is one chunk produced by Split, still unindexed and unscored.
type Window struct {
	SourceID   string
	SourceName string
	Text       string
	Index      int
}

// Splitter breaks normalized document text into overlapping word windows.
type Splitter struct {
	WindowWords   int
	OverlapWords  int
}

// NewSplitter builds a Splitter. An overlap >= windowWords is clamped down
// to windowWords-1 so the step size never reaches zero.
func NewSplitter(windowWords, overlapWords int) *Splitter {
	if overlapWords >= windowWords {
		overlapWords = windowWords - 1
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	return &Splitter{WindowWords: windowWords, OverlapWords: overlapWords}
}

// Split normalizes text (trim, collapse whitespace) and breaks it into
// overlapping windows of WindowWords words, sourceName tagging each
// window's SourceName and SourceID back to the document it came from.
func (s *Splitter) Split(sourceName, text string) []Window {
	words := strings.Fields(Normalize(text))
	if len(words) == 0 {
		return nil
	}

	step := s.WindowWords - s.OverlapWords
	if step <= 0 {
		step = 1
	}

	var windows []Window
	for i := 0; i < len(words); i += step {
		end := i + s.WindowWords
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, Window{
			SourceID:   fmt.Sprintf("%s-%s", sourceName, uuid.New().String()[:8]),
			SourceName: sourceName,
			Text:       strings.Join(words[i:end], " "),
			Index:      len(windows),
		})
		if end >= len(words) {
			break
		}
	}
	return windows
}

// Normalize trims text and collapses any run of whitespace to a single
// space, matching the source system's preprocessing step.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
