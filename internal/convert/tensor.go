package convert

import (
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/headlands-org/go-distilbert/internal/safetensors"
)

// Repacker rewrites tensor data before it is written out. It receives the
// source name and shape and returns the replacement data.
type Repacker func(name string, data []float32, shape []uint64) ([]float32, error)

// Tensor is a named tensor read from a checkpoint
type Tensor interface {
	Name() string
	Shape() []uint64
	SetRepacker(Repacker)

	io.WriterTo
}

type safetensor struct {
	file  *safetensors.File
	name  string
	shape []uint64

	repacker Repacker
}

func (st *safetensor) Name() string {
	return st.name
}

func (st *safetensor) Shape() []uint64 {
	return st.shape
}

func (st *safetensor) SetRepacker(r Repacker) {
	st.repacker = r
}

func (st *safetensor) WriteTo(w io.Writer) (int64, error) {
	f32s, err := st.file.Float32(st.name)
	if err != nil {
		return 0, err
	}

	if st.repacker != nil {
		f32s, err = st.repacker(st.name, f32s, st.shape)
		if err != nil {
			return 0, err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, f32s); err != nil {
		return 0, err
	}

	return int64(len(f32s)) * 4, nil
}

// parseTensors opens every safetensors file in d and lists its tensors
func parseTensors(d string) ([]Tensor, error) {
	matches, err := filepath.Glob(filepath.Join(d, "*.safetensors"))
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("no safetensors files in %s", d)
	}

	sort.Strings(matches)

	var ts []Tensor
	for _, match := range matches {
		sf, err := safetensors.Open(match)
		if err != nil {
			return nil, err
		}

		for _, name := range sf.Names() {
			desc, _ := sf.Desc(name)

			shape := make([]uint64, len(desc.Shape))
			for i, dim := range desc.Shape {
				shape[i] = uint64(dim)
			}

			ts = append(ts, &safetensor{
				file:  sf,
				name:  name,
				shape: shape,
			})
		}
	}

	return ts, nil
}
