// Package bm25 implements the Okapi BM25 lexical index (C3) over the chunk
// store. Scoring, the artifact layout, and the quality filter follow the
// original BM25 retriever this system was ported from.
package bm25

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
)

// postingsCheckInterval is how many postings Search scores between
// cancellation checks: frequent enough that a timed-out query abandons
// work promptly, coarse enough that ctx.Err() isn't on the hot path of
// every single posting.
const postingsCheckInterval = 256

// Posting is one (chunk, term-frequency) entry in a term's posting list.
type Posting struct {
	ChunkID uint32
	TF      uint32
}

// Hit is a scored candidate returned by Search, score descending.
type Hit struct {
	ChunkID uint32
	Score   float64
}

// Index is the Okapi BM25 lexical index. K1 and B are fixed at build time
// and carried in the persisted artifact; they are not tunable at query time.
type Index struct {
	N        uint32
	AvgLen   float64
	K1       float64
	B        float64
	DocLens  []uint32
	Vocab    map[string]uint32
	Postings [][]Posting // indexed by vocab term id
	store    *chunkstore.Store
}

// DefaultK1 and DefaultB are the Okapi BM25 defaults used when an artifact
// does not override them (k1 ≈ 1.5, b ≈ 0.75).
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// NewFromArtifact constructs an Index directly from fields decoded by the
// artifact loader (C11). It performs no validation beyond what the loader
// already checked.
func NewFromArtifact(store *chunkstore.Store, n uint32, avgLen, k1, b float64, docLens []uint32, vocab map[string]uint32, postings [][]Posting) *Index {
	return &Index{
		N:        n,
		AvgLen:   avgLen,
		K1:       k1,
		B:        b,
		DocLens:  docLens,
		Vocab:    vocab,
		Postings: postings,
		store:    store,
	}
}

// Build constructs a BM25 index from a chunk store whose chunks already
// carry precomputed Tokens (C1 output), using the default k1/b parameters.
// This is the in-process equivalent of the offline build pipeline's BM25
// stage, used by tests and by callers that do not load a persisted artifact.
func Build(store *chunkstore.Store) *Index {
	n := store.Len()
	docLens := make([]uint32, n)
	vocab := make(map[string]uint32)
	docFreq := make(map[uint32]uint32)
	var postings [][]Posting
	var totalLen uint64

	store.Iter(func(c *chunkstore.Chunk) bool {
		termCounts := make(map[uint32]uint32)
		docLens[c.ID] = uint32(len(c.Tokens))
		totalLen += uint64(len(c.Tokens))
		for _, tok := range c.Tokens {
			termID, ok := vocab[tok]
			if !ok {
				termID = uint32(len(vocab))
				vocab[tok] = termID
				postings = append(postings, nil)
			}
			termCounts[termID]++
		}
		for termID, tf := range termCounts {
			postings[termID] = append(postings[termID], Posting{ChunkID: c.ID, TF: tf})
			docFreq[termID]++
		}
		return true
	})

	var avgLen float64
	if n > 0 {
		avgLen = float64(totalLen) / float64(n)
	}

	return &Index{
		N:        uint32(n),
		AvgLen:   avgLen,
		K1:       DefaultK1,
		B:        DefaultB,
		DocLens:  docLens,
		Vocab:    vocab,
		Postings: postings,
		store:    store,
	}
}

// idf is the Robertson-Sparck Jones IDF with the +1 floor that keeps scores
// non-negative for common terms.
func (idx *Index) idf(df uint32) float64 {
	n := float64(idx.N)
	return math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// Search scores query_tokens against the index and returns the top_k
// highest-scoring chunks, descending, ties broken by ascending chunk id.
// Unknown query tokens are ignored. Chunks with final score <= 0 are
// omitted. The quality filter is applied before truncation to top_k.
//
// ctx is checked every postingsCheckInterval postings scored, between one
// posting and the next, never mid-posting; on cancellation Search returns
// immediately with a nil hit slice and ctx.Err().
func (idx *Index) Search(ctx context.Context, queryTokens []string, topK int) ([]Hit, error) {
	if topK <= 0 || idx.N == 0 {
		return nil, nil
	}

	scores := make(map[uint32]float64)
	seen := make(map[string]struct{})
	scored := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		termID, ok := idx.Vocab[tok]
		if !ok {
			continue
		}
		postings := idx.Postings[termID]
		df := uint32(len(postings))
		if df == 0 {
			continue
		}
		idf := idx.idf(df)
		for _, p := range postings {
			scored++
			if scored%postingsCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			dl := float64(idx.DocLens[p.ChunkID])
			tf := float64(p.TF)
			denom := tf + idx.K1*(1-idx.B+idx.B*dl/idx.AvgLen)
			scores[p.ChunkID] += idf * (tf * (idx.K1 + 1)) / denom
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scores))
	for chunkID, score := range scores {
		if score > 0 {
			hits = append(hits, Hit{ChunkID: chunkID, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	hits = idx.applyQualityFilter(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ocrArtifactPatterns is the fixed list of substrings known to indicate OCR
// corruption in the source corpus.
var ocrArtifactPatterns = []string{"( %)", "del del", "S O LE S", "00/ 1 00"}

// applyQualityFilter rejects candidates whose chunk text looks like OCR
// garbage: too many special characters, too few coherent words, or a known
// OCR artifact substring. If every candidate fails, the single
// highest-scoring one is returned anyway (degenerate-corpus fallback).
func (idx *Index) applyQualityFilter(hits []Hit) []Hit {
	if idx.store == nil || len(hits) == 0 {
		return hits
	}
	filtered := make([]Hit, 0, len(hits))
	for _, h := range hits {
		chunk, err := idx.store.Get(h.ChunkID)
		if err != nil {
			continue
		}
		if isQualityChunk(chunk.Text) {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 0 {
		return hits[:1]
	}
	return filtered
}

func isQualityChunk(text string) bool {
	if text == "" {
		return false
	}

	special := 0
	runeCount := 0
	for _, r := range text {
		runeCount++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if runeCount > 0 && float64(special)/float64(runeCount) > 0.2 {
		return false
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	coherent := 0
	for _, w := range words {
		if len([]rune(w)) >= 3 && isAlpha(w) {
			coherent++
		}
	}
	if float64(coherent)/float64(len(words)) < 0.7 {
		return false
	}

	for _, pattern := range ocrArtifactPatterns {
		if strings.Contains(text, pattern) {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
