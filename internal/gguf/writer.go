package gguf

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"golang.org/x/exp/maps"
)

// Tensor describes one tensor to be written. Shape is the logical row-major
// shape (outermost dimension first); it is reversed on disk to follow the
// ggml innermost-first convention.
type Tensor struct {
	Name   string
	Kind   uint32
	Offset uint64
	Shape  []uint64

	io.WriterTo
}

// Size returns the tensor's byte size in the data section
func (t Tensor) Size() uint64 {
	elems := uint64(1)
	for _, d := range t.Shape {
		elems *= d
	}
	return elems * uint64(DType(t.Kind).ElemSize())
}

// WriteGGUF writes a GGUF v3 file: header, sorted metadata, tensor infos,
// then the aligned tensor data section.
func WriteGGUF(ws io.WriteSeeker, kv map[string]any, ts []Tensor) error {
	if err := binary.Write(ws, byteOrder, []byte("GGUF")); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, uint32(Version)); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, uint64(len(ts))); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, uint64(len(kv))); err != nil {
		return err
	}

	keys := maps.Keys(kv)
	slices.Sort(keys)

	for _, key := range keys {
		if err := writeKV(ws, key, kv[key]); err != nil {
			return err
		}
	}

	slices.SortFunc(ts, func(i, j Tensor) int {
		return cmp.Compare(i.Name, j.Name)
	})

	var s uint64
	for i := range ts {
		ts[i].Offset = s
		if err := writeTensorInfo(ws, ts[i]); err != nil {
			return err
		}
		// Each tensor is padded to the section alignment on disk.
		s += ts[i].Size() + uint64(padding(int64(ts[i].Size()), Alignment))
	}

	offset, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, bytes.Repeat([]byte{0}, int(padding(offset, Alignment)))); err != nil {
		return err
	}

	for _, t := range ts {
		if err := writeTensor(ws, t); err != nil {
			return err
		}
	}

	return nil
}

func writeKV(ws io.Writer, k string, v any) error {
	if err := binary.Write(ws, byteOrder, uint64(len(k))); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, []byte(k)); err != nil {
		return err
	}

	var err error
	switch v := v.(type) {
	case uint32:
		err = writeTyped(ws, MetadataUint32, v)
	case int32:
		err = writeTyped(ws, MetadataInt32, v)
	case uint64:
		err = writeTyped(ws, MetadataUint64, v)
	case float32:
		err = writeTyped(ws, MetadataFloat32, v)
	case bool:
		err = writeTyped(ws, MetadataBool, v)
	case string:
		err = writeString(ws, v)
	case []int32:
		err = writeArray(ws, MetadataInt32, v)
	case []uint32:
		err = writeArray(ws, MetadataUint32, v)
	case []float32:
		err = writeArray(ws, MetadataFloat32, v)
	case []string:
		if err := binary.Write(ws, byteOrder, uint32(MetadataArray)); err != nil {
			return err
		}

		if err := binary.Write(ws, byteOrder, uint32(MetadataString)); err != nil {
			return err
		}

		if err := binary.Write(ws, byteOrder, uint64(len(v))); err != nil {
			return err
		}

		for _, e := range v {
			if err := binary.Write(ws, byteOrder, uint64(len(e))); err != nil {
				return err
			}

			if err := binary.Write(ws, byteOrder, []byte(e)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("improper type for %q", k)
	}

	return err
}

func writeTyped[V any](ws io.Writer, t MetadataValueType, v V) error {
	if err := binary.Write(ws, byteOrder, uint32(t)); err != nil {
		return err
	}

	return binary.Write(ws, byteOrder, v)
}

func writeString(ws io.Writer, s string) error {
	if err := binary.Write(ws, byteOrder, uint32(MetadataString)); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, uint64(len(s))); err != nil {
		return err
	}

	return binary.Write(ws, byteOrder, []byte(s))
}

func writeArray[S ~[]E, E any](ws io.Writer, t MetadataValueType, s S) error {
	if err := binary.Write(ws, byteOrder, uint32(MetadataArray)); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, uint32(t)); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, uint64(len(s))); err != nil {
		return err
	}

	for _, e := range s {
		if err := binary.Write(ws, byteOrder, e); err != nil {
			return err
		}
	}

	return nil
}

func writeTensorInfo(ws io.Writer, t Tensor) error {
	if err := binary.Write(ws, byteOrder, uint64(len(t.Name))); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, []byte(t.Name)); err != nil {
		return err
	}

	if err := binary.Write(ws, byteOrder, uint32(len(t.Shape))); err != nil {
		return err
	}

	// Innermost dimension first on disk
	for i := range t.Shape {
		if err := binary.Write(ws, byteOrder, t.Shape[len(t.Shape)-i-1]); err != nil {
			return err
		}
	}

	if err := binary.Write(ws, byteOrder, t.Kind); err != nil {
		return err
	}

	return binary.Write(ws, byteOrder, t.Offset)
}

func writeTensor(ws io.WriteSeeker, t Tensor) error {
	if _, err := t.WriteTo(ws); err != nil {
		return err
	}

	offset, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	return binary.Write(ws, byteOrder, bytes.Repeat([]byte{0}, int(padding(offset, Alignment))))
}

func padding(offset, align int64) int64 {
	return (align - offset%align) % align
}
