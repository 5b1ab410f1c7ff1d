package fusion

import (
	"testing"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
)

func sampleStore() *chunkstore.Store {
	return chunkstore.New([]chunkstore.Chunk{
		{ID: 0, Text: "viaticos nacionales S/ 320.00 por dia de comision"},
		{ID: 1, Text: "procedimiento de rendicion de cuentas de gastos"},
		{ID: 2, Text: "viaticos nacionales S/ 320.00 por dia de comision"}, // duplicate text, different id
	})
}

func TestFuse_weightedCombination(t *testing.T) {
	store := sampleStore()
	hits := []ScoredHit{
		{ChunkID: 0, Method: MethodBM25, RawScore: 1.0, VariantIndex: 0},
		{ChunkID: 0, Method: MethodTFIDF, RawScore: 1.0, VariantIndex: 0},
		{ChunkID: 0, Method: MethodDense, RawScore: 1.0, VariantIndex: 0},
		{ChunkID: 1, Method: MethodBM25, RawScore: 0.5, VariantIndex: 0},
	}
	results := Fuse(hits, store, DefaultWeights, "viaticos nacionales", 5)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ChunkID != 0 {
		t.Errorf("expected chunk 0 to rank first, got %d", results[0].ChunkID)
	}
}

func TestFuse_dedupByFirst100Chars(t *testing.T) {
	store := sampleStore()
	hits := []ScoredHit{
		{ChunkID: 0, Method: MethodBM25, RawScore: 0.5, VariantIndex: 0},
		{ChunkID: 2, Method: MethodBM25, RawScore: 0.9, VariantIndex: 0},
	}
	results := Fuse(hits, store, DefaultWeights, "viaticos", 5)
	if len(results) != 1 {
		t.Fatalf("expected duplicate text to collapse to one result, got %d", len(results))
	}
	if results[0].ChunkID != 2 {
		t.Errorf("expected higher-scored duplicate (chunk 2) to win, got %d", results[0].ChunkID)
	}
}

func TestFuse_diversityBoostFavorsMultiMethod(t *testing.T) {
	store := sampleStore()
	hits := []ScoredHit{
		{ChunkID: 0, Method: MethodBM25, RawScore: 0.5, VariantIndex: 0},
		{ChunkID: 0, Method: MethodTFIDF, RawScore: 0.5, VariantIndex: 0},
		{ChunkID: 1, Method: MethodBM25, RawScore: 0.6, VariantIndex: 0},
	}
	results := Fuse(hits, store, DefaultWeights, "irrelevante", 5)
	var multi, single FusedResult
	for _, r := range results {
		if r.ChunkID == 0 {
			multi = r
		} else {
			single = r
		}
	}
	if len(multi.ContributingMethods) < 2 {
		t.Fatal("expected chunk 0 to have multiple contributing methods")
	}
	if multi.FusedScore <= single.FusedScore {
		t.Errorf("expected multi-method chunk 0 (%f) to outscore single-method chunk 1 (%f)", multi.FusedScore, single.FusedScore)
	}
}

func TestFuse_topKTruncates(t *testing.T) {
	store := sampleStore()
	hits := []ScoredHit{
		{ChunkID: 0, Method: MethodBM25, RawScore: 0.9, VariantIndex: 0},
		{ChunkID: 1, Method: MethodBM25, RawScore: 0.8, VariantIndex: 0},
	}
	results := Fuse(hits, store, DefaultWeights, "viaticos", 1)
	if len(results) != 1 {
		t.Errorf("expected topK truncation to 1, got %d", len(results))
	}
}

func TestFuse_tieBrokenByAscendingID(t *testing.T) {
	store := chunkstore.New([]chunkstore.Chunk{
		{ID: 0, Text: "alfa"},
		{ID: 1, Text: "beta"},
	})
	hits := []ScoredHit{
		{ChunkID: 0, Method: MethodBM25, RawScore: 1.0, VariantIndex: 0},
		{ChunkID: 1, Method: MethodBM25, RawScore: 1.0, VariantIndex: 0},
	}
	results := Fuse(hits, store, DefaultWeights, "nada", 2)
	if len(results) != 2 || results[0].ChunkID != 0 || results[1].ChunkID != 1 {
		t.Errorf("expected tie broken by ascending id, got %+v", results)
	}
}

func TestFuse_emptyInputYieldsEmpty(t *testing.T) {
	store := sampleStore()
	results := Fuse(nil, store, DefaultWeights, "nada", 5)
	if len(results) != 0 {
		t.Errorf("expected empty result for empty input, got %d", len(results))
	}
}
