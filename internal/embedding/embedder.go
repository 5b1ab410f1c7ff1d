// Package embedding encodes chunk and query text into the vectors the
// dense index (C5) scores by cosine similarity, via a cached ONNX model;
// MockEmbedder is a hash-based stand-in used by tests.
package embedding

import "context"

// Embedder is the dense index's sole dependency on a concrete encoder
// implementation: ONNXEmbedder in production, MockEmbedder in tests. A
// CGO-disabled build has no encoder at all and runs the dense index
// degraded.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
