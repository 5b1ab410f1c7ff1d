//go:build !cgo
// +build !cgo

package embedding

import "fmt"

// ONNXEmbedder is the no-op stand-in compiled in when CGO is disabled (see
// onnx.go for the real onnxruntime-backed implementation). Callers get a
// clear startup error rather than a silently degraded dense index baked
// into a binary that can never have served it in the first place.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails on a CGO-disabled build: the dense index
// (C5) has no encoder to fall back to, so the caller must either rebuild
// with CGO_ENABLED=1 and onnxruntime installed, or run with the dense
// index degraded (initializeComponents logs this error and continues
// without an encoder).
func NewONNXEmbedder(modelPath string, _, _, _ int) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("load ONNX model %q: requires CGO_ENABLED=1 and onnxruntime", modelPath)
}
