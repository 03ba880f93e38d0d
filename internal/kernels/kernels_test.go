package kernels

import (
	"math"
	"math/rand"
	"testing"
)

func approxEqual(a, b, tol float32) bool {
	return float32(math.Abs(float64(a-b))) <= tol
}

func TestLayerNorm(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	gamma := []float32{1, 1, 1, 1}
	beta := []float32{0, 0, 0, 0}
	dst := make([]float32, 4)

	LayerNorm(dst, src, gamma, beta, 1e-12)

	// mean=2.5, var=1.25
	invStd := float32(1.0 / math.Sqrt(1.25))
	want := []float32{-1.5 * invStd, -0.5 * invStd, 0.5 * invStd, 1.5 * invStd}
	for i := range want {
		if !approxEqual(dst[i], want[i], 1e-5) {
			t.Errorf("dst[%d] = %f, want %f", i, dst[i], want[i])
		}
	}
}

func TestLayerNormScaleShift(t *testing.T) {
	src := []float32{-1, 0, 1}
	gamma := []float32{2, 2, 2}
	beta := []float32{1, 1, 1}
	dst := make([]float32, 3)

	LayerNorm(dst, src, gamma, beta, 1e-12)

	// Normalized values are ±sqrt(3/2) and 0
	v := float32(math.Sqrt(1.5))
	want := []float32{-2*v + 1, 1, 2*v + 1}
	for i := range want {
		if !approxEqual(dst[i], want[i], 1e-5) {
			t.Errorf("dst[%d] = %f, want %f", i, dst[i], want[i])
		}
	}
}

func TestLayerNormRows(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5, 6}
	gamma := []float32{1, 1, 1}
	beta := []float32{0, 0, 0}

	LayerNormRows(x, gamma, beta, 2, 3, 1e-12)

	// Both rows have the same normalized shape
	for i := 0; i < 3; i++ {
		if !approxEqual(x[i], x[3+i], 1e-5) {
			t.Errorf("row mismatch at %d: %f vs %f", i, x[i], x[3+i])
		}
	}
}

func TestGELU(t *testing.T) {
	src := []float32{-2, -1, 0, 1, 2}
	dst := make([]float32, len(src))

	GELU(dst, src, len(src))

	// Exact GELU reference values
	want := []float32{-0.0455003, -0.1586553, 0, 0.8413447, 1.9544997}
	for i := range want {
		if !approxEqual(dst[i], want[i], 1e-5) {
			t.Errorf("GELU(%f) = %f, want %f", src[i], dst[i], want[i])
		}
	}
}

func TestSoftmax(t *testing.T) {
	x := []float32{1, 2, 3}
	Softmax(x, 3)

	sum := x[0] + x[1] + x[2]
	if !approxEqual(sum, 1, 1e-6) {
		t.Errorf("softmax sum = %f", sum)
	}
	if !(x[2] > x[1] && x[1] > x[0]) {
		t.Errorf("softmax ordering broken: %v", x)
	}
}

func TestSoftmaxLargeValues(t *testing.T) {
	x := []float32{1000, 1001, 1002}
	Softmax(x, 3)

	for i, v := range x {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("softmax[%d] not finite: %f", i, v)
		}
	}
}

func TestMatMul(t *testing.T) {
	// input [1,2] x weight [2,3] + bias
	input := []float32{1, 2}
	weight := []float32{
		1, 2, 3,
		4, 5, 6,
	}
	bias := []float32{10, 20, 30}
	dst := make([]float32, 3)

	MatMul(dst, input, weight, bias, 1, 2, 3)

	want := []float32{19, 32, 45}
	for i := range want {
		if !approxEqual(dst[i], want[i], 1e-6) {
			t.Errorf("dst[%d] = %f, want %f", i, dst[i], want[i])
		}
	}
}

func TestMatMulBatchNoBias(t *testing.T) {
	input := []float32{
		1, 0,
		0, 1,
	}
	weight := []float32{
		1, 2,
		3, 4,
	}
	dst := make([]float32, 4)

	MatMul(dst, input, weight, nil, 2, 2, 2)

	want := []float32{1, 2, 3, 4}
	for i := range want {
		if !approxEqual(dst[i], want[i], 1e-6) {
			t.Errorf("dst[%d] = %f, want %f", i, dst[i], want[i])
		}
	}
}

func TestDotProductMatchesScalar(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{0, 1, 7, 8, 9, 64, 127, 768} {
		a := make([]float32, n)
		b := make([]float32, n)
		for i := 0; i < n; i++ {
			a[i] = rng.Float32()*2 - 1
			b[i] = rng.Float32()*2 - 1
		}

		got := DotProduct(a, b, n)
		want := dotProductScalar(a, b, n)
		if !approxEqual(got, want, 1e-4) {
			t.Errorf("n=%d: DotProduct = %f, scalar = %f", n, got, want)
		}
	}
}

func TestVecAdd(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{10, 20, 30}
	dst := make([]float32, 3)

	VecAdd(dst, a, b, 3)

	want := []float32{11, 22, 33}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %f, want %f", i, dst[i], want[i])
		}
	}
}
