package gguf

import (
	"fmt"
	"math"
	"unsafe"
)

// TensorView provides typed access to tensor data
type TensorView struct {
	desc *TensorDesc
	data []byte
}

// NewTensorView creates a view over tensor data
func NewTensorView(desc *TensorDesc, data []byte) *TensorView {
	return &TensorView{desc: desc, data: data}
}

// Dims returns the tensor dims, innermost first
func (tv *TensorView) Dims() []int {
	return tv.desc.Dims
}

// DType returns the tensor data type
func (tv *TensorView) DType() DType {
	return tv.desc.DType
}

// Float32 materializes the tensor data as []float32. F32 data is returned
// as a zero-copy view; F16 is widened into a fresh slice.
func (tv *TensorView) Float32() ([]float32, error) {
	n := tv.desc.NumElements()

	switch tv.desc.DType {
	case DTypeF32:
		if len(tv.data) < n*4 {
			return nil, fmt.Errorf("insufficient data for F32 tensor %s", tv.desc.Name)
		}
		return unsafe.Slice((*float32)(unsafe.Pointer(&tv.data[0])), n), nil

	case DTypeF16:
		if len(tv.data) < n*2 {
			return nil, fmt.Errorf("insufficient data for F16 tensor %s", tv.desc.Name)
		}
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = float16ToFloat32(byteOrder.Uint16(tv.data[i*2:]))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported dtype for conversion: %s", tv.desc.DType)
	}
}

// float16ToFloat32 converts an IEEE 754 half-precision value to float32
func float16ToFloat32(f16 uint16) float32 {
	sign := (f16 >> 15) & 0x1
	exp := (f16 >> 10) & 0x1F
	mant := f16 & 0x3FF

	var f32Bits uint32

	if exp == 0 {
		if mant == 0 {
			f32Bits = uint32(sign) << 31
		} else {
			// Subnormal, normalize it
			e := uint32(127 - 15)
			m := uint32(mant)
			for (m & 0x400) == 0 {
				m <<= 1
				e--
			}
			m &= 0x3FF
			f32Bits = (uint32(sign) << 31) | (e << 23) | (m << 13)
		}
	} else if exp == 0x1F {
		// Inf or NaN
		f32Bits = (uint32(sign) << 31) | (0xFF << 23) | (uint32(mant) << 13)
	} else {
		f32Bits = (uint32(sign) << 31) | ((uint32(exp-15+127) & 0xFF) << 23) | (uint32(mant) << 13)
	}

	return math.Float32frombits(f32Bits)
}
