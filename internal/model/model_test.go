package model

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headlands-org/go-distilbert/internal/convert"
)

const (
	testVocabSize = 16
	testDim       = 8
	testHeads     = 2
	testHidden    = 16
	testLayers    = 2
	testCtx       = 32
)

// writeCheckpoint builds a synthetic checkpoint directory with random
// weights, small enough to keep the forward pass numerically tame.
func writeCheckpoint(t *testing.T) string {
	t.Helper()

	d := t.TempDir()

	config := map[string]any{
		"architectures":           []string{"DistilBertModel"},
		"vocab_size":              testVocabSize,
		"max_position_embeddings": testCtx,
		"n_layers":                testLayers,
		"n_heads":                 testHeads,
		"dim":                     testDim,
		"hidden_dim":              testHidden,
		"dropout":                 0.1,
	}
	cfg, err := json.Marshal(config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(d, "config.json"), cfg, 0o644))

	lines := []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]"}
	for i := len(lines); i < testVocabSize; i++ {
		lines = append(lines, fmt.Sprintf("tok%d", i))
	}
	vocab := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(d, "vocab.txt"), []byte(vocab), 0o644))

	shapes := map[string][]int{
		"embeddings.word_embeddings.weight":     {testVocabSize, testDim},
		"embeddings.position_embeddings.weight": {testCtx, testDim},
		"embeddings.LayerNorm.weight":           {testDim},
		"embeddings.LayerNorm.bias":             {testDim},
	}
	for i := 0; i < testLayers; i++ {
		prefix := fmt.Sprintf("transformer.layer.%d.", i)
		for _, lin := range []string{"attention.q_lin", "attention.k_lin", "attention.v_lin", "attention.out_lin"} {
			shapes[prefix+lin+".weight"] = []int{testDim, testDim}
			shapes[prefix+lin+".bias"] = []int{testDim}
		}
		shapes[prefix+"sa_layer_norm.weight"] = []int{testDim}
		shapes[prefix+"sa_layer_norm.bias"] = []int{testDim}
		shapes[prefix+"ffn.lin1.weight"] = []int{testHidden, testDim}
		shapes[prefix+"ffn.lin1.bias"] = []int{testHidden}
		shapes[prefix+"ffn.lin2.weight"] = []int{testDim, testHidden}
		shapes[prefix+"ffn.lin2.bias"] = []int{testDim}
		shapes[prefix+"output_layer_norm.weight"] = []int{testDim}
		shapes[prefix+"output_layer_norm.bias"] = []int{testDim}
	}

	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(42))
	header := make(map[string]any, len(shapes))
	var blob []byte
	offset := 0
	for _, name := range names {
		n := 1
		for _, dim := range shapes[name] {
			n *= dim
		}

		buf := make([]byte, n*4)
		for i := 0; i < n; i++ {
			v := (rng.Float32()*2 - 1) * 0.1
			if strings.HasSuffix(name, "norm.weight") || strings.HasSuffix(name, "LayerNorm.weight") {
				v += 1
			}
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}

		end := offset + len(buf)
		header[name] = map[string]any{
			"dtype":        "F32",
			"shape":        shapes[name],
			"data_offsets": []int{offset, end},
		}
		blob = append(blob, buf...)
		offset = end
	}

	hdr, err := json.Marshal(header)
	require.NoError(t, err)

	f, err := os.Create(filepath.Join(d, "model.safetensors"))
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(len(hdr))))
	_, err = f.Write(hdr)
	require.NoError(t, err)
	_, err = f.Write(blob)
	require.NoError(t, err)

	return d
}

func convertCheckpoint(t *testing.T, d string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "model.gguf")
	f, err := os.Create(out)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, convert.Convert(d, f))
	return out
}

func TestLoadSafetensors(t *testing.T) {
	d := writeCheckpoint(t)

	m, err := LoadSafetensors(d)
	require.NoError(t, err)

	cfg := m.Config()
	assert.Equal(t, testVocabSize, cfg.VocabSize)
	assert.Equal(t, testDim, cfg.EmbedDim)
	assert.Equal(t, testLayers, cfg.NumLayers)
	assert.Equal(t, testHeads, cfg.NumHeads)
	assert.Equal(t, testDim/testHeads, cfg.HeadDim)
	assert.Equal(t, testHidden, cfg.IntermDim)
}

func TestLoadGGUF(t *testing.T) {
	d := writeCheckpoint(t)
	path := convertCheckpoint(t, d)

	m, err := LoadGGUF(path)
	require.NoError(t, err)
	defer m.Close()

	cfg := m.Config()
	assert.Equal(t, testVocabSize, cfg.VocabSize)
	assert.Equal(t, testDim, cfg.EmbedDim)
	assert.Equal(t, float32(1e-12), cfg.NormEps)
	require.NotNil(t, m.Tokenizer())
	assert.Equal(t, testVocabSize, m.Tokenizer().VocabSize())
}

func TestForwardShape(t *testing.T) {
	d := writeCheckpoint(t)

	m, err := LoadSafetensors(d)
	require.NoError(t, err)

	out, err := m.Forward([]int{2, 5, 6, 3})
	require.NoError(t, err)
	assert.Len(t, out, 4*testDim)

	for i, v := range out {
		require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "out[%d] = %f", i, v)
	}
}

func TestForwardErrors(t *testing.T) {
	d := writeCheckpoint(t)

	m, err := LoadSafetensors(d)
	require.NoError(t, err)

	_, err = m.Forward(nil)
	assert.ErrorContains(t, err, "empty")

	_, err = m.Forward([]int{testVocabSize})
	assert.ErrorContains(t, err, "out of range")

	long := make([]int, testCtx+1)
	_, err = m.Forward(long)
	assert.ErrorContains(t, err, "exceeds maximum")
}

func TestForwardDeterministic(t *testing.T) {
	d := writeCheckpoint(t)

	m, err := LoadSafetensors(d)
	require.NoError(t, err)

	ids := []int{2, 7, 9, 11, 3}
	a, err := m.Forward(ids)
	require.NoError(t, err)
	b, err := m.Forward(ids)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

// TestForwardParity runs the same sequence through the checkpoint-loaded
// and the converted model and requires matching hidden states.
func TestForwardParity(t *testing.T) {
	d := writeCheckpoint(t)
	path := convertCheckpoint(t, d)

	ref, err := LoadSafetensors(d)
	require.NoError(t, err)

	conv, err := LoadGGUF(path)
	require.NoError(t, err)
	defer conv.Close()

	ids := []int{2, 5, 8, 13, 6, 3}
	a, err := ref.Forward(ids)
	require.NoError(t, err)
	b, err := conv.Forward(ids)
	require.NoError(t, err)

	require.Len(t, b, len(a))

	var maxDiff float64
	for i := range a {
		diff := math.Abs(float64(a[i] - b[i]))
		if diff > maxDiff {
			maxDiff = diff
		}
	}

	assert.Less(t, maxDiff, 1e-5, "max abs diff %g", maxDiff)
}
