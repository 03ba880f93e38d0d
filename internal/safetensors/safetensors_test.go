package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func writeTestFile(t *testing.T, header map[string]any, data []byte) string {
	t.Helper()

	hdr, err := json.Marshal(header)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(len(hdr))))
	_, err = f.Write(hdr)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)

	return path
}

func TestOpenF32(t *testing.T) {
	vals := []float32{1.5, -2.25, 0, 42}
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	path := writeTestFile(t, map[string]any{
		"__metadata__": map[string]string{"format": "pt"},
		"weight": map[string]any{
			"dtype":        "F32",
			"shape":        []int{2, 2},
			"data_offsets": []int{0, len(data)},
		},
	}, data)

	sf, err := Open(path)
	require.NoError(t, err)
	defer sf.Close()

	assert.Equal(t, []string{"weight"}, sf.Names())

	desc, ok := sf.Desc("weight")
	require.True(t, ok)
	assert.Equal(t, "F32", desc.DType)
	assert.Equal(t, []int{2, 2}, desc.Shape)

	got, err := sf.Float32("weight")
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestOpenF16(t *testing.T) {
	vals := []float32{1, -0.5, 3}
	data := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
	}

	path := writeTestFile(t, map[string]any{
		"half": map[string]any{
			"dtype":        "F16",
			"shape":        []int{3},
			"data_offsets": []int{0, len(data)},
		},
	}, data)

	sf, err := Open(path)
	require.NoError(t, err)
	defer sf.Close()

	got, err := sf.Float32("half")
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestOpenBF16(t *testing.T) {
	// Values chosen to be exactly representable in bfloat16
	vals := []float32{1, -2, 0.5, 256}
	data := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(math.Float32bits(v)>>16))
	}

	path := writeTestFile(t, map[string]any{
		"bhalf": map[string]any{
			"dtype":        "BF16",
			"shape":        []int{4},
			"data_offsets": []int{0, len(data)},
		},
	}, data)

	sf, err := Open(path)
	require.NoError(t, err)
	defer sf.Close()

	got, err := sf.Float32("bhalf")
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestMissingTensor(t *testing.T) {
	path := writeTestFile(t, map[string]any{}, nil)

	sf, err := Open(path)
	require.NoError(t, err)
	defer sf.Close()

	_, err = sf.Float32("nope")
	assert.ErrorContains(t, err, "tensor not found")
}

func TestTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestSizeMismatch(t *testing.T) {
	path := writeTestFile(t, map[string]any{
		"short": map[string]any{
			"dtype":        "F32",
			"shape":        []int{4},
			"data_offsets": []int{0, 8},
		},
	}, make([]byte, 8))

	sf, err := Open(path)
	require.NoError(t, err)
	defer sf.Close()

	_, err = sf.Float32("short")
	assert.ErrorContains(t, err, "want 16")
}
