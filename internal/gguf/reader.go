package gguf

import (
	"fmt"
	"math"
	"os"
	"sort"

	"golang.org/x/exp/mmap"
)

// Reader provides read access to a GGUF file via memory mapping
type Reader struct {
	path     string
	mmap     *mmap.ReaderAt
	data     []byte
	header   Header
	metadata map[string]Metadata
	tensors  map[string]*TensorDesc
	dataOff  int64 // offset where tensor data begins
}

// TensorDesc describes a tensor with its location in the mapped file.
// Dims are in file order, innermost first (ggml convention): Dims[0] is
// the length of one row of the stored data.
type TensorDesc struct {
	Name   string
	DType  DType
	Dims   []int
	Offset int64 // relative to the data section
	Size   int64 // size in bytes
}

// NumElements returns the total element count
func (d *TensorDesc) NumElements() int {
	n := 1
	for _, dim := range d.Dims {
		n *= dim
	}
	return n
}

// Open opens a GGUF file and memory-maps it
func Open(path string) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	mmapReader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	data := make([]byte, info.Size())
	if _, err := mmapReader.ReadAt(data, 0); err != nil {
		mmapReader.Close()
		return nil, fmt.Errorf("read mmap: %w", err)
	}

	r := &Reader{
		path:     path,
		mmap:     mmapReader,
		data:     data,
		metadata: make(map[string]Metadata),
		tensors:  make(map[string]*TensorDesc),
	}

	if err := r.parse(); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

// OpenBytes parses a GGUF image held in memory. Used by tests and tools
// that already have the file contents.
func OpenBytes(data []byte) (*Reader, error) {
	r := &Reader{
		data:     data,
		metadata: make(map[string]Metadata),
		tensors:  make(map[string]*TensorDesc),
	}

	if err := r.parse(); err != nil {
		return nil, err
	}

	return r, nil
}

// Close closes the reader and unmaps the file
func (r *Reader) Close() error {
	if r.mmap != nil {
		return r.mmap.Close()
	}
	return nil
}

// parse reads the GGUF header, metadata, and tensor info
func (r *Reader) parse() error {
	offset := 0

	if len(r.data) < 24 {
		return fmt.Errorf("file too small for header")
	}

	r.header.Magic = byteOrder.Uint32(r.data[offset:])
	offset += 4
	if r.header.Magic != Magic {
		return fmt.Errorf("invalid magic: 0x%08x", r.header.Magic)
	}

	r.header.Version = byteOrder.Uint32(r.data[offset:])
	offset += 4
	if r.header.Version != Version {
		return fmt.Errorf("unsupported version: %d", r.header.Version)
	}

	r.header.TensorCount = byteOrder.Uint64(r.data[offset:])
	offset += 8

	r.header.MetadataKV = byteOrder.Uint64(r.data[offset:])
	offset += 8

	for i := uint64(0); i < r.header.MetadataKV; i++ {
		md, n, err := r.readMetadata(offset)
		if err != nil {
			return fmt.Errorf("read metadata %d: %w", i, err)
		}
		r.metadata[md.Key] = md
		offset += n
	}

	for i := uint64(0); i < r.header.TensorCount; i++ {
		desc, n, err := r.readTensorInfo(offset)
		if err != nil {
			return fmt.Errorf("read tensor info %d: %w", i, err)
		}
		offset += n
		r.tensors[desc.Name] = desc
	}

	r.dataOff = int64(align(offset, Alignment))

	return nil
}

// readMetadata reads a single metadata key-value pair
func (r *Reader) readMetadata(offset int) (Metadata, int, error) {
	start := offset
	md := Metadata{}

	keyLen := byteOrder.Uint64(r.data[offset:])
	offset += 8
	md.Key = string(r.data[offset : offset+int(keyLen)])
	offset += int(keyLen)

	md.Type = MetadataValueType(byteOrder.Uint32(r.data[offset:]))
	offset += 4

	var err error
	md.Value, offset, err = r.readMetadataValue(offset, md.Type)
	if err != nil {
		return md, 0, err
	}

	return md, offset - start, nil
}

// readMetadataValue reads a metadata value
func (r *Reader) readMetadataValue(offset int, typ MetadataValueType) (any, int, error) {
	switch typ {
	case MetadataUint8:
		return r.data[offset], offset + 1, nil
	case MetadataInt8:
		return int8(r.data[offset]), offset + 1, nil
	case MetadataUint16:
		return byteOrder.Uint16(r.data[offset:]), offset + 2, nil
	case MetadataInt16:
		return int16(byteOrder.Uint16(r.data[offset:])), offset + 2, nil
	case MetadataUint32:
		return byteOrder.Uint32(r.data[offset:]), offset + 4, nil
	case MetadataInt32:
		return int32(byteOrder.Uint32(r.data[offset:])), offset + 4, nil
	case MetadataFloat32:
		return math.Float32frombits(byteOrder.Uint32(r.data[offset:])), offset + 4, nil
	case MetadataUint64:
		return byteOrder.Uint64(r.data[offset:]), offset + 8, nil
	case MetadataInt64:
		return int64(byteOrder.Uint64(r.data[offset:])), offset + 8, nil
	case MetadataFloat64:
		return math.Float64frombits(byteOrder.Uint64(r.data[offset:])), offset + 8, nil
	case MetadataBool:
		return r.data[offset] != 0, offset + 1, nil
	case MetadataString:
		strlen := byteOrder.Uint64(r.data[offset:])
		offset += 8
		str := string(r.data[offset : offset+int(strlen)])
		return str, offset + int(strlen), nil
	case MetadataArray:
		arrType := MetadataValueType(byteOrder.Uint32(r.data[offset:]))
		offset += 4
		arrLen := byteOrder.Uint64(r.data[offset:])
		offset += 8
		arr := make([]any, arrLen)
		for i := uint64(0); i < arrLen; i++ {
			var err error
			arr[i], offset, err = r.readMetadataValue(offset, arrType)
			if err != nil {
				return nil, offset, err
			}
		}
		return arr, offset, nil
	default:
		return nil, offset, fmt.Errorf("unknown metadata type: %d", typ)
	}
}

// readTensorInfo reads tensor information
func (r *Reader) readTensorInfo(offset int) (*TensorDesc, int, error) {
	start := offset
	desc := &TensorDesc{}

	nameLen := byteOrder.Uint64(r.data[offset:])
	offset += 8
	desc.Name = string(r.data[offset : offset+int(nameLen)])
	offset += int(nameLen)

	ndim := byteOrder.Uint32(r.data[offset:])
	offset += 4

	desc.Dims = make([]int, ndim)
	for i := uint32(0); i < ndim; i++ {
		desc.Dims[i] = int(byteOrder.Uint64(r.data[offset:]))
		offset += 8
	}

	desc.DType = DType(byteOrder.Uint32(r.data[offset:]))
	offset += 4

	desc.Offset = int64(byteOrder.Uint64(r.data[offset:]))
	offset += 8

	elemSize := desc.DType.ElemSize()
	if elemSize == 0 {
		return nil, 0, fmt.Errorf("tensor %s: unsupported dtype %s", desc.Name, desc.DType)
	}
	desc.Size = int64(desc.NumElements()) * int64(elemSize)

	return desc, offset - start, nil
}

// GetMetadata returns metadata value by key
func (r *Reader) GetMetadata(key string) (any, bool) {
	md, ok := r.metadata[key]
	if !ok {
		return nil, false
	}
	return md.Value, true
}

// GetTensor returns tensor descriptor by name
func (r *Reader) GetTensor(name string) (*TensorDesc, bool) {
	desc, ok := r.tensors[name]
	return desc, ok
}

// ListTensors returns all tensor names, sorted
func (r *Reader) ListTensors() []string {
	names := make([]string, 0, len(r.tensors))
	for name := range r.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTensorData returns a view of the tensor data as a byte slice
func (r *Reader) GetTensorData(name string) ([]byte, error) {
	desc, ok := r.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor not found: %s", name)
	}

	offset := r.dataOff + desc.Offset
	if offset < 0 || offset+desc.Size > int64(len(r.data)) {
		return nil, fmt.Errorf("tensor data out of bounds: %s", name)
	}

	return r.data[offset : offset+desc.Size], nil
}

// Header returns the GGUF header
func (r *Reader) Header() Header {
	return r.header
}

// align rounds up to the nearest multiple of alignment
func align(offset, alignment int) int {
	return (offset + alignment - 1) &^ (alignment - 1)
}
