package tfidf

import (
	"context"
	"testing"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tokenizer"
)

func buildSampleIndex() *Index {
	chunks := []chunkstore.Chunk{
		{ID: 0, Text: "viaticos nacionales S/ 320.00 por dia de comision de servicios"},
		{ID: 1, Text: "procedimiento de rendicion de cuentas de gastos de viaje"},
		{ID: 2, Text: "reglamento interno de la institucion educativa"},
	}
	for i := range chunks {
		chunks[i].Tokens = tokenizer.Tokenize(chunks[i].Text)
	}
	return Build(chunkstore.New(chunks))
}

func TestSearch_ranksMatchingChunkFirst(t *testing.T) {
	idx := buildSampleIndex()
	hits, err := idx.Search(context.Background(), "viaticos nacionales", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].ChunkID != 0 {
		t.Errorf("expected chunk 0 to rank first, got %d", hits[0].ChunkID)
	}
	if hits[0].Score > 1.0001 {
		t.Errorf("cosine score should not exceed 1, got %f", hits[0].Score)
	}
}

func TestSearch_unknownTokensYieldEmpty(t *testing.T) {
	idx := buildSampleIndex()
	hits, err := idx.Search(context.Background(), "palabradesconocidaxyz", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected empty result for unknown tokens, got %d", len(hits))
	}
}

func TestSearch_topKTruncates(t *testing.T) {
	idx := buildSampleIndex()
	hits, err := idx.Search(context.Background(), "viaticos gastos reglamento educativa", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) > 1 {
		t.Errorf("expected at most 1 hit, got %d", len(hits))
	}
}

func TestRows_roundTripsThroughNewFromArtifact(t *testing.T) {
	idx := buildSampleIndex()
	rebuilt := NewFromArtifact(idx.N, idx.Vocab, idx.IDF, idx.Rows())

	want, err := idx.Search(context.Background(), "viaticos nacionales", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got, err := rebuilt.Search(context.Background(), "viaticos nacionales", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d hits after round-trip, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ChunkID != want[i].ChunkID {
			t.Errorf("hit %d: expected chunk %d, got %d", i, want[i].ChunkID, got[i].ChunkID)
		}
	}
}

func TestSearch_emptyQueryIsNotAnError(t *testing.T) {
	idx := buildSampleIndex()
	hits, err := idx.Search(context.Background(), "", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil/empty for empty query, got %v", hits)
	}
}

func TestSearch_returnsErrorWhenContextAlreadyCanceled(t *testing.T) {
	idx := buildSampleIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hits, err := idx.Search(ctx, "viaticos nacionales", 3)
	if err == nil {
		t.Fatal("expected an error for an already-canceled context")
	}
	if hits != nil {
		t.Errorf("expected nil hits on cancellation, got %v", hits)
	}
}
