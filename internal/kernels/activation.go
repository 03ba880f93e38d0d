package kernels

import "math"

// GELU applies the exact GELU activation function
// GELU(x) = 0.5 * x * (1 + erf(x / sqrt(2)))
func GELU(dst, src []float32, n int) {
	const invSqrt2 = 0.7071067811865476

	for i := 0; i < n; i++ {
		x := float64(src[i])
		dst[i] = float32(0.5 * x * (1.0 + math.Erf(x*invSqrt2)))
	}
}

// Softmax applies softmax in place over the first n elements.
// Max-subtracted for numerical stability.
func Softmax(x []float32, n int) {
	if n == 0 {
		return
	}

	max := x[0]
	for i := 1; i < n; i++ {
		if x[i] > max {
			max = x[i]
		}
	}

	sum := float32(0)
	for i := 0; i < n; i++ {
		x[i] = float32(math.Exp(float64(x[i] - max)))
		sum += x[i]
	}

	inv := 1.0 / sum
	for i := 0; i < n; i++ {
		x[i] *= inv
	}
}
