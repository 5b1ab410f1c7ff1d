package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/bm25"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/dense"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/embedding"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tfidf"
)

// Standard artifact file names within the artifact base directory.
const (
	ChunkStoreFile = "chunks.bin"
	BM25File       = "bm25.bin"
	TFIDFFile      = "tfidf.bin"
	DenseFile      = "dense.bin"
)

const schemaVersion = 1

type chunkRecord struct {
	ID       uint32         `json:"id"`
	Text     string         `json:"text"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type chunkStorePayload struct {
	Chunks []chunkRecord `json:"chunks"`
}

type bm25Payload struct {
	N        uint32            `json:"n"`
	AvgLen   float64           `json:"avg_len"`
	K1       float64           `json:"k1"`
	B        float64           `json:"b"`
	DocLens  []uint32          `json:"doc_lens"`
	Vocab    map[string]uint32 `json:"vocab"`
	Postings [][]bm25.Posting  `json:"postings"`
}

type tfidfPayload struct {
	N     uint32            `json:"n"`
	Vocab map[string]uint32 `json:"vocab"`
	IDF   []float64         `json:"idf"`
	Rows  []tfidf.Row       `json:"rows"`
}

type densePayload struct {
	ModelName  string      `json:"model_name"`
	Dimensions int         `json:"d"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Result is the outcome of LoadAll: the four components, plus
// non-fatal warnings about any artifact that degraded to empty-result
// mode.
type Result struct {
	ChunkStore *chunkstore.Store
	BM25       *bm25.Index
	TFIDF      *tfidf.Index
	Dense      *dense.Index
	Warnings   []string
}

// SaveChunkStore persists a chunk store to the artifact bundle at
// baseDir/ChunkStoreFile.
func SaveChunkStore(baseDir string, store *chunkstore.Store) error {
	records := make([]chunkRecord, 0, store.Len())
	store.Iter(func(c *chunkstore.Chunk) bool {
		records = append(records, chunkRecord{ID: c.ID, Text: c.Text, Title: c.Title, Metadata: c.Metadata})
		return true
	})
	payload, err := json.Marshal(chunkStorePayload{Chunks: records})
	if err != nil {
		return fmt.Errorf("marshal chunk store: %w", err)
	}
	return write(filepath.Join(baseDir, ChunkStoreFile), "chunkstore", schemaVersion, payload)
}

// SaveBM25 persists a BM25 index to the artifact bundle.
func SaveBM25(baseDir string, idx *bm25.Index) error {
	payload, err := json.Marshal(bm25Payload{
		N: idx.N, AvgLen: idx.AvgLen, K1: idx.K1, B: idx.B,
		DocLens: idx.DocLens, Vocab: idx.Vocab, Postings: idx.Postings,
	})
	if err != nil {
		return fmt.Errorf("marshal bm25 index: %w", err)
	}
	return write(filepath.Join(baseDir, BM25File), "bm25", schemaVersion, payload)
}

// SaveTFIDF persists a TF-IDF index to the artifact bundle.
func SaveTFIDF(baseDir string, idx *tfidf.Index, rows []tfidf.Row) error {
	payload, err := json.Marshal(tfidfPayload{N: idx.N, Vocab: idx.Vocab, IDF: idx.IDF, Rows: rows})
	if err != nil {
		return fmt.Errorf("marshal tfidf index: %w", err)
	}
	return write(filepath.Join(baseDir, TFIDFFile), "tfidf", schemaVersion, payload)
}

// SaveDense persists a dense index to the artifact bundle.
func SaveDense(baseDir, modelName string, dimensions int, embeddings [][]float32) error {
	payload, err := json.Marshal(densePayload{ModelName: modelName, Dimensions: dimensions, Embeddings: embeddings})
	if err != nil {
		return fmt.Errorf("marshal dense index: %w", err)
	}
	return write(filepath.Join(baseDir, DenseFile), "dense", schemaVersion, payload)
}

// LoadAll loads the chunk store, BM25, TF-IDF, and dense artifacts from
// baseDir. The chunk store is required: every other index is aligned
// to it by chunk id, so a missing or corrupt chunk store is fatal.
// Each of BM25/TF-IDF/Dense degrades independently to an empty-result
// index (with a warning) on load failure or a schema mismatch against
// the chunk store's count; LoadAll only errors outright if every one
// of the three degrades, per the "at least one index functional"
// requirement.
func LoadAll(ctx context.Context, baseDir string, encoder embedding.Embedder) (*Result, error) {
	store, err := loadChunkStore(baseDir)
	if err != nil {
		return nil, fmt.Errorf("load chunk store: %w", err)
	}

	result := &Result{ChunkStore: store}
	functional := 0

	if idx, warning := loadBM25(baseDir, store); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	} else {
		result.BM25 = idx
		functional++
	}

	if idx, warning := loadTFIDF(baseDir, store); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	} else {
		result.TFIDF = idx
		functional++
	}

	if idx, warning := loadDense(baseDir, store, encoder); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	} else {
		result.Dense = idx
		functional++
	}

	if functional == 0 {
		return nil, fmt.Errorf("all indexes failed to load or are degraded: %v", result.Warnings)
	}
	return result, nil
}

func loadChunkStore(baseDir string) (*chunkstore.Store, error) {
	_, payload, err := read(baseDir, ChunkStoreFile)
	if err != nil {
		return nil, err
	}
	var parsed chunkStorePayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode chunk store payload: %w", err)
	}
	chunks := make([]chunkstore.Chunk, len(parsed.Chunks))
	for i, r := range parsed.Chunks {
		chunks[i] = chunkstore.Chunk{ID: r.ID, Text: r.Text, Title: r.Title, Metadata: r.Metadata}
	}
	return chunkstore.New(chunks), nil
}

func loadBM25(baseDir string, store *chunkstore.Store) (*bm25.Index, string) {
	_, payload, err := read(baseDir, BM25File)
	if err != nil {
		return nil, fmt.Sprintf("bm25 index degraded: %v", err)
	}
	var parsed bm25Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Sprintf("bm25 index degraded: decode failed: %v", err)
	}
	if int(parsed.N) != store.Len() {
		return nil, fmt.Sprintf("bm25 index degraded: chunk count mismatch (%d vs %d)", parsed.N, store.Len())
	}
	return bm25.NewFromArtifact(store, parsed.N, parsed.AvgLen, parsed.K1, parsed.B, parsed.DocLens, parsed.Vocab, parsed.Postings), ""
}

func loadTFIDF(baseDir string, store *chunkstore.Store) (*tfidf.Index, string) {
	_, payload, err := read(baseDir, TFIDFFile)
	if err != nil {
		return nil, fmt.Sprintf("tfidf index degraded: %v", err)
	}
	var parsed tfidfPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Sprintf("tfidf index degraded: decode failed: %v", err)
	}
	if int(parsed.N) != store.Len() {
		return nil, fmt.Sprintf("tfidf index degraded: chunk count mismatch (%d vs %d)", parsed.N, store.Len())
	}
	if len(parsed.Vocab) != len(parsed.IDF) {
		return nil, "tfidf index degraded: vocabulary size does not match idf vector size"
	}
	return tfidf.NewFromArtifact(parsed.N, parsed.Vocab, parsed.IDF, parsed.Rows), ""
}

func loadDense(baseDir string, store *chunkstore.Store, encoder embedding.Embedder) (*dense.Index, string) {
	_, payload, err := read(baseDir, DenseFile)
	if err != nil {
		return nil, fmt.Sprintf("dense index degraded: %v", err)
	}
	var parsed densePayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Sprintf("dense index degraded: decode failed: %v", err)
	}
	if len(parsed.Embeddings) != store.Len() {
		return nil, fmt.Sprintf("dense index degraded: chunk count mismatch (%d vs %d)", len(parsed.Embeddings), store.Len())
	}
	if encoder == nil {
		return nil, "dense index degraded: no query encoder available at load time"
	}
	return dense.NewFromArtifact(parsed.Dimensions, parsed.Embeddings, encoder), ""
}
