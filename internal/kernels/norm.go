// Package kernels provides pure-Go math kernels for tensor operations
package kernels

import "math"

// LayerNorm applies layer normalization
// out[i] = (x[i] - mean(x)) / sqrt(var(x) + eps) * gamma[i] + beta[i]
func LayerNorm(dst, src, gamma, beta []float32, eps float32) {
	n := len(src)
	if len(dst) < n || len(gamma) < n || len(beta) < n {
		panic("LayerNorm: buffer size mismatch")
	}

	sum := float32(0)
	for i := 0; i < n; i++ {
		sum += src[i]
	}
	mean := sum / float32(n)

	sumSq := float32(0)
	for i := 0; i < n; i++ {
		diff := src[i] - mean
		sumSq += diff * diff
	}
	variance := sumSq / float32(n)

	invStd := float32(1.0 / math.Sqrt(float64(variance+eps)))
	for i := 0; i < n; i++ {
		dst[i] = (src[i]-mean)*invStd*gamma[i] + beta[i]
	}
}

// LayerNormRows applies LayerNorm to each row of a [rows, n] matrix in place
func LayerNormRows(x, gamma, beta []float32, rows, n int, eps float32) {
	for r := 0; r < rows; r++ {
		row := x[r*n : (r+1)*n]
		LayerNorm(row, row, gamma, beta, eps)
	}
}
