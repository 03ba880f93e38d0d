// Package safetensors reads the Hugging Face safetensors checkpoint format:
// an 8-byte little-endian header length, a JSON header mapping tensor names
// to dtype/shape/offsets, and a raw data section which is memory-mapped.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/edsrzf/mmap-go"
	"github.com/x448/float16"
)

// TensorDesc describes one tensor in the checkpoint
type TensorDesc struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File provides read access to a safetensors file
type File struct {
	f       *os.File
	mm      mmap.MMap
	data    []byte // data section, after the header
	tensors map[string]TensorDesc
}

// Open opens and memory-maps a safetensors file
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open safetensors: %w", err)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap safetensors: %w", err)
	}

	sf := &File{f: f, mm: mm}
	if err := sf.parse(mm); err != nil {
		sf.Close()
		return nil, err
	}

	return sf, nil
}

// Close unmaps and closes the file
func (sf *File) Close() error {
	var err error
	if sf.mm != nil {
		err = sf.mm.Unmap()
		sf.mm = nil
	}
	if sf.f != nil {
		if e := sf.f.Close(); e != nil && err == nil {
			err = e
		}
		sf.f = nil
	}
	return err
}

func (sf *File) parse(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("file too small for header length")
	}

	headerLen := binary.LittleEndian.Uint64(data)
	if 8+headerLen > uint64(len(data)) {
		return fmt.Errorf("header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return fmt.Errorf("parse header: %w", err)
	}

	sf.tensors = make(map[string]TensorDesc, len(header))
	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}

		var desc TensorDesc
		if err := json.Unmarshal(raw, &desc); err != nil {
			return fmt.Errorf("parse tensor %s: %w", name, err)
		}
		sf.tensors[name] = desc
	}

	sf.data = data[8+headerLen:]
	return nil
}

// Names returns all tensor names, sorted
func (sf *File) Names() []string {
	names := make([]string, 0, len(sf.tensors))
	for name := range sf.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Desc returns the descriptor for a tensor
func (sf *File) Desc(name string) (TensorDesc, bool) {
	desc, ok := sf.tensors[name]
	return desc, ok
}

// Bytes returns the raw bytes of a tensor
func (sf *File) Bytes(name string) ([]byte, error) {
	desc, ok := sf.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor not found: %s", name)
	}

	start, end := desc.DataOffsets[0], desc.DataOffsets[1]
	if start < 0 || end > int64(len(sf.data)) || start > end {
		return nil, fmt.Errorf("tensor data out of bounds: %s", name)
	}

	return sf.data[start:end], nil
}

// Float32 materializes a tensor as []float32, widening F16 and BF16
func (sf *File) Float32(name string) ([]float32, error) {
	desc, ok := sf.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor not found: %s", name)
	}

	bts, err := sf.Bytes(name)
	if err != nil {
		return nil, err
	}

	n := 1
	for _, d := range desc.Shape {
		n *= d
	}

	switch desc.DType {
	case "F32":
		if len(bts) != n*4 {
			return nil, fmt.Errorf("tensor %s: have %d bytes, want %d", name, len(bts), n*4)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(bts[i*4:]))
		}
		return out, nil

	case "F16":
		if len(bts) != n*2 {
			return nil, fmt.Errorf("tensor %s: have %d bytes, want %d", name, len(bts), n*2)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(bts[i*2:])).Float32()
		}
		return out, nil

	case "BF16":
		if len(bts) != n*2 {
			return nil, fmt.Errorf("tensor %s: have %d bytes, want %d", name, len(bts), n*2)
		}
		return bfloat16.DecodeFloat32(bts), nil

	default:
		return nil, fmt.Errorf("tensor %s: unsupported dtype %s", name, desc.DType)
	}
}
