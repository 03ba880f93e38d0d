// Package gguf provides GGUF v3 reading and writing with memory-mapped
// access to tensor data.
package gguf

import (
	"encoding/binary"
	"fmt"
)

// GGUF format constants
const (
	Magic   = 0x46554747 // "GGUF" in little-endian
	Version = 3

	// Alignment of the tensor data section and of each tensor within it.
	Alignment = 32
)

// DType represents tensor data types in GGUF
type DType uint32

const (
	DTypeF32 DType = 0
	DTypeF16 DType = 1
	DTypeI8  DType = 16
	DTypeI16 DType = 17
	DTypeI32 DType = 18
	DTypeI64 DType = 19
	DTypeF64 DType = 20
)

// String returns the name of the data type
func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "F32"
	case DTypeF16:
		return "F16"
	case DTypeI8:
		return "I8"
	case DTypeI16:
		return "I16"
	case DTypeI32:
		return "I32"
	case DTypeI64:
		return "I64"
	case DTypeF64:
		return "F64"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(d))
	}
}

// ElemSize returns the size in bytes of one element
func (d DType) ElemSize() int {
	switch d {
	case DTypeF32, DTypeI32:
		return 4
	case DTypeF16, DTypeI16:
		return 2
	case DTypeI8:
		return 1
	case DTypeI64, DTypeF64:
		return 8
	default:
		return 0
	}
}

// MetadataValueType represents the type of a metadata value
type MetadataValueType uint32

const (
	MetadataUint8   MetadataValueType = 0
	MetadataInt8    MetadataValueType = 1
	MetadataUint16  MetadataValueType = 2
	MetadataInt16   MetadataValueType = 3
	MetadataUint32  MetadataValueType = 4
	MetadataInt32   MetadataValueType = 5
	MetadataFloat32 MetadataValueType = 6
	MetadataBool    MetadataValueType = 7
	MetadataString  MetadataValueType = 8
	MetadataArray   MetadataValueType = 9
	MetadataUint64  MetadataValueType = 10
	MetadataInt64   MetadataValueType = 11
	MetadataFloat64 MetadataValueType = 12
)

// Header is the GGUF file header
type Header struct {
	Magic       uint32
	Version     uint32
	TensorCount uint64
	MetadataKV  uint64
}

// Metadata represents a key-value pair from GGUF metadata
type Metadata struct {
	Key   string
	Type  MetadataValueType
	Value any
}

var byteOrder = binary.LittleEndian
