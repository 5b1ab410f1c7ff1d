// Package tfidf implements the sparse TF-IDF cosine index (C4) over the
// chunk store, using the same token pipeline as BM25 (C1).
package tfidf

import (
	"context"
	"math"
	"sort"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tokenizer"
)

// rowsCheckInterval is how many nonzero column entries Search scores
// between cancellation checks, mirroring bm25's postingsCheckInterval.
const rowsCheckInterval = 256

// Hit is a scored candidate returned by Search, score descending.
type Hit struct {
	ChunkID uint32
	Score   float64
}

// entry is one nonzero (row, value) pair in a term's column, used to compute
// cosine similarity without scanning every row for every query.
type entry struct {
	row   uint32
	value float64
}

// Index is the fitted TF-IDF vector space: a vocabulary, an IDF vector, and
// an L2-normalized row-major sparse matrix, stored column-wise for query
// efficiency (value row indices are monotonically increasing per column, but
// rows are sourced from an ordinary CSR artifact).
type Index struct {
	N       uint32
	Vocab   map[string]uint32
	IDF     []float64
	columns [][]entry // indexed by term id
}

// Row is one CSR row as decoded from the persisted artifact: parallel
// Indices/Data slices of nonzero columns.
type Row struct {
	Indices []uint32
	Data    []float64
}

// NewFromArtifact constructs an Index from fitted CSR rows decoded by the
// artifact loader (C11). The rows are used as stored, without
// re-normalization; Build writes them L2-normalized.
func NewFromArtifact(n uint32, vocab map[string]uint32, idf []float64, rows []Row) *Index {
	columns := make([][]entry, len(vocab))
	for rowID, row := range rows {
		for i, col := range row.Indices {
			columns[col] = append(columns[col], entry{row: uint32(rowID), value: row.Data[i]})
		}
	}
	return &Index{N: n, Vocab: vocab, IDF: idf, columns: columns}
}

// Rows reconstructs the CSR rows of idx in ascending chunk-id order, for
// callers (the artifact builder) that need to persist the fitted matrix
// rather than just the query-oriented column index.
func (idx *Index) Rows() []Row {
	rows := make([]Row, idx.N)
	for col, entries := range idx.columns {
		for _, e := range entries {
			rows[e.row].Indices = append(rows[e.row].Indices, uint32(col))
			rows[e.row].Data = append(rows[e.row].Data, e.value)
		}
	}
	return rows
}

// Build fits a TF-IDF index directly from chunk text using the standard
// smooth IDF: idf(t) = ln((1+N)/(1+df(t))) + 1, then L2-normalizes each row.
// This is the in-process equivalent of the offline build pipeline's TF-IDF
// stage, used by tests and callers that do not load a persisted artifact.
func Build(store *chunkstore.Store) *Index {
	n := store.Len()
	vocab := make(map[string]uint32)
	df := make(map[uint32]uint32)
	rawRows := make([]map[uint32]float64, n)

	store.Iter(func(c *chunkstore.Chunk) bool {
		counts := make(map[uint32]float64)
		for _, tok := range c.Tokens {
			termID, ok := vocab[tok]
			if !ok {
				termID = uint32(len(vocab))
				vocab[tok] = termID
			}
			counts[termID]++
		}
		for termID := range counts {
			df[termID]++
		}
		rawRows[c.ID] = counts
		return true
	})

	idf := make([]float64, len(vocab))
	for termID := range vocab {
		idf[termID] = math.Log(float64(1+n)/float64(1+df[termID])) + 1
	}

	rows := make([]Row, n)
	for rowID, counts := range rawRows {
		var norm float64
		for termID, tf := range counts {
			w := tf * idf[termID]
			counts[termID] = w
			norm += w * w
		}
		norm = math.Sqrt(norm)
		indices := make([]uint32, 0, len(counts))
		data := make([]float64, 0, len(counts))
		for termID, w := range counts {
			if norm > 0 {
				w /= norm
			}
			indices = append(indices, termID)
			data = append(data, w)
		}
		rows[rowID] = Row{Indices: indices, Data: data}
	}

	return NewFromArtifact(uint32(n), vocab, idf, rows)
}

// Search tokenizes query_text with the same pipeline used at build time,
// forms an L2-normalized sparse query vector weighted by the fitted IDF,
// and scores chunks by cosine similarity (a plain dot product, since both
// sides are unit-normalized). Unknown query tokens contribute zero. An
// empty query vector yields an empty result, not an error.
//
// ctx is checked every rowsCheckInterval column entries scored, between
// one entry and the next; on cancellation Search returns immediately with a nil hit
// slice and ctx.Err().
func (idx *Index) Search(ctx context.Context, queryText string, topK int) ([]Hit, error) {
	if topK <= 0 || idx.N == 0 {
		return nil, nil
	}

	tokens := tokenizer.Tokenize(queryText)
	rawCounts := make(map[uint32]float64)
	for _, tok := range tokens {
		termID, ok := idx.Vocab[tok]
		if !ok {
			continue
		}
		rawCounts[termID]++
	}
	if len(rawCounts) == 0 {
		return nil, nil
	}

	var norm float64
	for termID, tf := range rawCounts {
		w := tf * idx.IDF[termID]
		rawCounts[termID] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, nil
	}

	scores := make(map[uint32]float64)
	scored := 0
	for termID, w := range rawCounts {
		qWeight := w / norm
		for _, e := range idx.columns[termID] {
			scored++
			if scored%rowsCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			scores[e.row] += qWeight * e.value
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
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
