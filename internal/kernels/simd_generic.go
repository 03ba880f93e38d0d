//go:build !amd64

package kernels

// SIMD not available on this platform
var hasAVX2 = false

func dotProduct(a, b []float32, n int) float32 {
	return dotProductScalar(a, b, n)
}

func dotProductScalar(a, b []float32, n int) float32 {
	sum := float32(0)
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
