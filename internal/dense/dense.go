// Package dense implements the dense embedding index (C5): a small,
// static, brute-force cosine matcher over a query encoder satisfying the
// embedding.Embedder interface. There is no ANN structure and no
// incremental upsert; the matrix is built once from an artifact or a
// chunk store and queried by a single E*qT pass.
package dense

import (
	"context"
	"sort"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/embedding"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/pkg/utils"
)

// Hit is a scored candidate returned by Search, score descending.
type Hit struct {
	ChunkID uint32
	Score   float64
}

// Index is the dense embedding index: an L2-normalized row-major matrix
// E (one row per chunk) plus the encoder used to vectorize queries at
// search time. Encoder may be nil, in which case the index runs in
// degraded mode and Search always returns an empty result rather than
// an error.
type Index struct {
	Dimensions int
	rows       [][]float32 // chunk id -> unit-normalized embedding
	encoder    embedding.Embedder
}

// NewFromArtifact constructs an Index from rows decoded by the artifact
// loader (C11). The rows are used as stored, without re-normalization;
// the build pipeline writes encoder output, which is already unit-length.
// encoder may be nil when the ONNX runtime is
// unavailable at load time; the index still serves as a valid, empty-result
// degraded-mode component rather than failing startup.
func NewFromArtifact(dimensions int, rows [][]float32, encoder embedding.Embedder) *Index {
	return &Index{Dimensions: dimensions, rows: rows, encoder: encoder}
}

// Build embeds every chunk in store with encoder and L2-normalizes the
// resulting rows. This is the in-process equivalent of the offline build
// pipeline's dense stage, used by tests and callers without a persisted
// artifact.
func Build(ctx context.Context, store *chunkstore.Store, encoder embedding.Embedder) (*Index, error) {
	if encoder == nil {
		return &Index{Dimensions: 0, rows: nil, encoder: nil}, nil
	}

	n := store.Len()
	texts := make([]string, n)
	store.Iter(func(c *chunkstore.Chunk) bool {
		texts[c.ID] = c.Text
		return true
	})

	embeddings, err := encoder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	rows := make([][]float32, n)
	for i, e := range embeddings {
		rows[i] = normalizeL2(e)
	}

	return &Index{Dimensions: encoder.Dimensions(), rows: rows, encoder: encoder}, nil
}

// Degraded reports whether the index has no usable encoder or rows, in
// which case Search always returns an empty result set rather than an
// error (spec's degraded-mode requirement for an unavailable encoder).
func (idx *Index) Degraded() bool {
	return idx == nil || idx.encoder == nil || len(idx.rows) == 0
}

// rowsCheckInterval is how many matrix rows Search scores between
// cancellation checks, the dense-matmul analogue of bm25's
// postingsCheckInterval and tfidf's rowsCheckInterval.
const rowsCheckInterval = 256

// Search embeds queryText, L2-normalizes it, and scores every row by
// cosine similarity (a plain dot product, since both sides are unit
// vectors). Results are sorted score descending, ties broken by
// ascending chunk id, and truncated to topK. If the index is in
// degraded mode, Search returns an empty slice and no error.
//
// ctx is checked every rowsCheckInterval rows, between one row's dot
// product and the next; on cancellation Search returns immediately with
// a nil hit slice and ctx.Err().
func (idx *Index) Search(ctx context.Context, queryText string, topK int) ([]Hit, error) {
	if topK <= 0 || idx.Degraded() {
		return nil, nil
	}

	vec, err := idx.encoder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	q := normalizeL2(vec)

	hits := make([]Hit, 0, len(idx.rows))
	for chunkID, row := range idx.rows {
		if chunkID > 0 && chunkID%rowsCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(row) != len(q) {
			continue
		}
		var dot float64
		for i := range q {
			dot += float64(q[i]) * float64(row[i])
		}
		if dot > 0 {
			hits = append(hits, Hit{ChunkID: uint32(chunkID), Score: dot})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func normalizeL2(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	utils.NormalizeL2(out)
	return out
}
