package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{1, 2.5, 3, 3}

	r, err := Compare(a, b)
	require.NoError(t, err)

	assert.Equal(t, 4, r.Count)
	assert.InDelta(t, 0.375, r.MeanAbsDiff, 1e-9)
	assert.InDelta(t, 1.0, r.MaxAbsDiff, 1e-9)
	assert.False(t, r.Within(1e-5))
	assert.True(t, r.Within(1.0))
}

func TestCompareIdentical(t *testing.T) {
	a := []float32{0.1, -0.2, 0.3}

	r, err := Compare(a, a)
	require.NoError(t, err)
	assert.Zero(t, r.MaxAbsDiff)
	assert.Zero(t, r.MeanAbsDiff)
	assert.True(t, r.Within(0))
}

func TestCompareLengthMismatch(t *testing.T) {
	_, err := Compare([]float32{1}, []float32{1, 2})
	assert.ErrorContains(t, err, "length mismatch")
}

func TestCompareEmpty(t *testing.T) {
	_, err := Compare(nil, nil)
	assert.Error(t, err)
}

func TestMD5Sum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	sum, err := MD5Sum(path)
	require.NoError(t, err)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", sum)
}

func TestMD5SumMissingFile(t *testing.T) {
	_, err := MD5Sum(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
