// Package fusion implements fusion and rerank (C7): weighted combination
// of per-index scores, deduplication, diversity/consensus/keyword-overlap
// boosts, and the "first variant that finds relevant results wins" rule.
package fusion

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/pkg/utils"
)

// Method identifies which retrieval index produced a scored hit.
type Method string

const (
	MethodBM25  Method = "bm25"
	MethodTFIDF Method = "tfidf"
	MethodDense Method = "dense"
)

// ScoredHit is one (chunk, method, score) observation from a single
// retrieval variant, as produced by the parallel BM25/TF-IDF/Dense stage.
type ScoredHit struct {
	ChunkID      uint32
	Method       Method
	RawScore     float64
	VariantIndex int
}

// Weights are the per-method fusion weights; defaults are
// w_bm25=0.4, w_tfidf=0.3, w_dense=0.3.
type Weights struct {
	BM25  float64
	TFIDF float64
	Dense float64
}

// DefaultWeights are the spec-mandated default fusion weights.
var DefaultWeights = Weights{BM25: 0.4, TFIDF: 0.3, Dense: 0.3}

func (w Weights) of(m Method) float64 {
	switch m {
	case MethodBM25:
		return w.BM25
	case MethodTFIDF:
		return w.TFIDF
	case MethodDense:
		return w.Dense
	default:
		return 0
	}
}

// FusedResult is the final ranked output of the fusion stage.
type FusedResult struct {
	ChunkID             uint32
	FusedScore          float64
	ContributingMethods []Method
	PerMethodScores     map[Method]float64
	// SearchVariant is the earliest variant index that contributed a hit
	// for this chunk, after the early-variant-preference rule is applied.
	SearchVariant int
}

var numericAnchorPattern = regexp.MustCompile(`S/\s*\d+(?:[.,]\d{2})?`)

// Fuse combines scored hits from all methods and variants into an
// ordered list of fused results, truncated to topK. store and
// originalQuery (the sanitized variant-0 query) are used for the
// dedup-by-text and keyword-overlap steps.
func Fuse(hits []ScoredHit, store *chunkstore.Store, weights Weights, originalQuery string, topK int) []FusedResult {
	if topK <= 0 {
		return nil
	}

	byChunk := groupByChunk(hits)
	anchor := numericAnchorPattern.FindString(originalQuery)
	applyEarlyVariantPreference(byChunk, store, anchor)

	combined := make(map[uint32]*FusedResult, len(byChunk))
	for chunkID, chunkHits := range byChunk {
		perMethod := bestScorePerMethod(chunkHits)
		result := &FusedResult{ChunkID: chunkID, PerMethodScores: perMethod, SearchVariant: earliestVariant(chunkHits)}
		for method, score := range perMethod {
			result.FusedScore += weights.of(method) * score
			result.ContributingMethods = append(result.ContributingMethods, method)
		}
		sort.Slice(result.ContributingMethods, func(i, j int) bool {
			return result.ContributingMethods[i] < result.ContributingMethods[j]
		})
		combined[chunkID] = result
	}

	deduped := dedup(combined, store)
	applyBoosts(deduped, store, originalQuery)

	out := make([]FusedResult, 0, len(deduped))
	for _, r := range deduped {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func groupByChunk(hits []ScoredHit) map[uint32][]ScoredHit {
	byChunk := make(map[uint32][]ScoredHit)
	for _, h := range hits {
		byChunk[h.ChunkID] = append(byChunk[h.ChunkID], h)
	}
	return byChunk
}

// applyEarlyVariantPreference implements step 5: if a chunk's text
// contains a numeric anchor from the original query and the earliest
// variant to surface that chunk with the anchor present is not variant
// 0, later variants' hits for that chunk id are dropped so only
// variant 0 and the winning variant contribute.
func applyEarlyVariantPreference(byChunk map[uint32][]ScoredHit, store *chunkstore.Store, anchor string) {
	if anchor == "" || store == nil {
		return
	}
	for chunkID, chunkHits := range byChunk {
		chunk, err := store.Get(chunkID)
		if err != nil || !strings.Contains(chunk.Text, anchor) {
			continue
		}
		winningVariant := -1
		for _, h := range chunkHits {
			if h.VariantIndex == 0 {
				continue
			}
			if winningVariant == -1 || h.VariantIndex < winningVariant {
				winningVariant = h.VariantIndex
			}
		}
		if winningVariant == -1 {
			continue
		}
		kept := chunkHits[:0]
		for _, h := range chunkHits {
			if h.VariantIndex == 0 || h.VariantIndex <= winningVariant {
				kept = append(kept, h)
			}
		}
		byChunk[chunkID] = kept
	}
}

func earliestVariant(hits []ScoredHit) int {
	earliest := -1
	for _, h := range hits {
		if earliest == -1 || h.VariantIndex < earliest {
			earliest = h.VariantIndex
		}
	}
	if earliest == -1 {
		return 0
	}
	return earliest
}

func bestScorePerMethod(hits []ScoredHit) map[Method]float64 {
	best := make(map[Method]float64, 3)
	for _, h := range hits {
		if cur, ok := best[h.Method]; !ok || h.RawScore > cur {
			best[h.Method] = h.RawScore
		}
	}
	return best
}

// dedup implements step 3: chunks are identified by id first; if ids
// differ but texts share the same first 100 characters (normalized),
// the higher-scored entry wins.
func dedup(combined map[uint32]*FusedResult, store *chunkstore.Store) map[uint32]*FusedResult {
	if store == nil {
		return combined
	}
	winnerByText := make(map[string]uint32)
	for chunkID, result := range combined {
		chunk, err := store.Get(chunkID)
		if err != nil {
			continue
		}
		key := utils.First100(strings.ToLower(strings.TrimSpace(chunk.Text)))
		if existingID, ok := winnerByText[key]; ok {
			if combined[existingID].FusedScore >= result.FusedScore {
				delete(combined, chunkID)
				continue
			}
			delete(combined, existingID)
		}
		winnerByText[key] = chunkID
	}
	return combined
}

// applyBoosts implements step 4: diversity, consensus, and keyword
// overlap boosts are added to each result's fused score in place.
func applyBoosts(results map[uint32]*FusedResult, store *chunkstore.Store, originalQuery string) {
	queryWords := caseFoldedWords(originalQuery)
	for chunkID, result := range results {
		n := len(result.ContributingMethods)
		result.FusedScore += 0.1 * float64(n)

		if n >= 2 {
			scores := make([]float64, 0, n)
			for _, m := range result.ContributingMethods {
				scores = append(scores, result.PerMethodScores[m])
			}
			result.FusedScore += 0.2 * math.Max(0, 1-stddev(scores))
		}

		if store != nil && len(queryWords) > 0 {
			if chunk, err := store.Get(chunkID); err == nil {
				matched := countMatches(queryWords, chunk.Text)
				result.FusedScore += 0.1 * float64(matched) / float64(len(queryWords))
			}
		}
	}
}

func caseFoldedWords(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func countMatches(queryWords []string, text string) int {
	lower := strings.ToLower(text)
	matched := 0
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			matched++
		}
	}
	return matched
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
