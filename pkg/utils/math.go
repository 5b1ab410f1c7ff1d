package utils

import "math"

// NormalizeL2 scales x in place to unit L2 norm, accumulating the sum of
// squares in float64 for the same precision the dense index (C5) and
// MockEmbedder rely on when later taking a dot product of two such
// vectors. A zero vector is left unchanged rather than producing NaNs.
func NormalizeL2(x []float32) {
	var sumSq float64
	for _, v := range x {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	scale := float32(1.0 / math.Sqrt(sumSq))
	for i := range x {
		x[i] *= scale
	}
}
