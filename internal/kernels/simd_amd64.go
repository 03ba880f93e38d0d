//go:build amd64

package kernels

import "golang.org/x/sys/cpu"

// SIMD support flags
var hasAVX2 = cpu.X86.HasAVX2

// dotProduct selects between the 8-wide unrolled loop and the scalar loop.
// The unrolled form keeps 4 independent accumulators so the compiler can
// schedule the FMAs without a loop-carried dependency.
func dotProduct(a, b []float32, n int) float32 {
	if hasAVX2 && n >= 8 {
		return dotProductUnrolled(a, b, n)
	}
	return dotProductScalar(a, b, n)
}

func dotProductUnrolled(a, b []float32, n int) float32 {
	var s0, s1, s2, s3 float32

	i := 0
	for ; i+8 <= n; i += 8 {
		s0 += a[i]*b[i] + a[i+1]*b[i+1]
		s1 += a[i+2]*b[i+2] + a[i+3]*b[i+3]
		s2 += a[i+4]*b[i+4] + a[i+5]*b[i+5]
		s3 += a[i+6]*b[i+6] + a[i+7]*b[i+7]
	}

	sum := s0 + s1 + s2 + s3
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func dotProductScalar(a, b []float32, n int) float32 {
	sum := float32(0)
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
