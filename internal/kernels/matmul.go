package kernels

// MatMul multiplies input [batch, inDim] by weight [inDim, outDim] and adds
// bias [outDim], writing dst [batch, outDim]. The weight layout keeps each
// output row's accumulation streaming contiguously through the weight data.
func MatMul(dst, input, weight, bias []float32, batch, inDim, outDim int) {
	if len(dst) < batch*outDim || len(input) < batch*inDim || len(weight) < inDim*outDim {
		panic("MatMul: buffer size mismatch")
	}

	for b := 0; b < batch; b++ {
		out := dst[b*outDim : (b+1)*outDim]
		in := input[b*inDim : (b+1)*inDim]

		if bias != nil {
			copy(out, bias[:outDim])
		} else {
			for o := range out {
				out[o] = 0
			}
		}

		for i := 0; i < inDim; i++ {
			x := in[i]
			if x == 0 {
				continue
			}
			row := weight[i*outDim : (i+1)*outDim]
			for o := 0; o < outDim; o++ {
				out[o] += x * row[o]
			}
		}
	}
}

// VecAdd adds two vectors: dst = a + b
func VecAdd(dst, a, b []float32, n int) {
	for i := 0; i < n; i++ {
		dst[i] = a[i] + b[i]
	}
}

// DotProduct computes the dot product of a[:n] and b[:n]
func DotProduct(a, b []float32, n int) float32 {
	if len(a) < n || len(b) < n {
		panic("DotProduct: slice too small")
	}
	return dotProduct(a, b, n)
}
