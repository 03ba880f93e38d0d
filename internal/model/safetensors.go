package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/headlands-org/go-distilbert/internal/safetensors"
)

type checkpointConfig struct {
	VocabSize             int `json:"vocab_size"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
	NLayers               int `json:"n_layers"`
	NHeads                int `json:"n_heads"`
	Dim                   int `json:"dim"`
	HiddenDim             int `json:"hidden_dim"`
}

// LoadSafetensors loads the encoder straight from a checkpoint directory
// holding config.json and model.safetensors. This path is independent of the
// conversion pipeline so the two can be checked against each other.
func LoadSafetensors(dir string) (*Model, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}

	var cc checkpointConfig
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}

	if cc.NHeads <= 0 || cc.Dim%cc.NHeads != 0 {
		return nil, fmt.Errorf("dim %d not divisible by n_heads %d", cc.Dim, cc.NHeads)
	}

	cfg := Config{
		VocabSize: cc.VocabSize,
		MaxSeqLen: cc.MaxPositionEmbeddings,
		EmbedDim:  cc.Dim,
		NumLayers: cc.NLayers,
		NumHeads:  cc.NHeads,
		HeadDim:   cc.Dim / cc.NHeads,
		IntermDim: cc.HiddenDim,
		NormEps:   1e-12,
	}

	sf, err := safetensors.Open(filepath.Join(dir, "model.safetensors"))
	if err != nil {
		return nil, err
	}
	defer sf.Close()

	ld := &checkpointLoader{sf: sf}

	m := &Model{
		config: cfg,
		layers: make([]Layer, cfg.NumLayers),
	}

	m.tokenEmbed = ld.tensor("embeddings.word_embeddings.weight")
	m.posEmbed = ld.tensor("embeddings.position_embeddings.weight")
	m.embedNormWeight = ld.tensor("embeddings.LayerNorm.weight")
	m.embedNormBias = ld.tensor("embeddings.LayerNorm.bias")

	for i := 0; i < cfg.NumLayers; i++ {
		prefix := fmt.Sprintf("transformer.layer.%d.", i)
		layer := &m.layers[i]

		layer.AttnQWeight = ld.linear(prefix + "attention.q_lin.weight")
		layer.AttnQBias = ld.tensor(prefix + "attention.q_lin.bias")
		layer.AttnKWeight = ld.linear(prefix + "attention.k_lin.weight")
		layer.AttnKBias = ld.tensor(prefix + "attention.k_lin.bias")
		layer.AttnVWeight = ld.linear(prefix + "attention.v_lin.weight")
		layer.AttnVBias = ld.tensor(prefix + "attention.v_lin.bias")
		layer.AttnOutWeight = ld.linear(prefix + "attention.out_lin.weight")
		layer.AttnOutBias = ld.tensor(prefix + "attention.out_lin.bias")

		layer.AttnNormWeight = ld.tensor(prefix + "sa_layer_norm.weight")
		layer.AttnNormBias = ld.tensor(prefix + "sa_layer_norm.bias")

		layer.FFNUpWeight = ld.linear(prefix + "ffn.lin1.weight")
		layer.FFNUpBias = ld.tensor(prefix + "ffn.lin1.bias")
		layer.FFNDownWeight = ld.linear(prefix + "ffn.lin2.weight")
		layer.FFNDownBias = ld.tensor(prefix + "ffn.lin2.bias")

		layer.OutNormWeight = ld.tensor(prefix + "output_layer_norm.weight")
		layer.OutNormBias = ld.tensor(prefix + "output_layer_norm.bias")
	}

	if ld.err != nil {
		return nil, ld.err
	}

	if want := cfg.VocabSize * cfg.EmbedDim; len(m.tokenEmbed) != want {
		return nil, fmt.Errorf("token embedding has %d elements, want %d", len(m.tokenEmbed), want)
	}

	return m, nil
}

// checkpointLoader accumulates the first load error so the caller can read
// the whole weight set before checking.
type checkpointLoader struct {
	sf  *safetensors.File
	err error
}

func (ld *checkpointLoader) tensor(name string) []float32 {
	if ld.err != nil {
		return nil
	}

	name = ld.resolve(name)
	f32s, err := ld.sf.Float32(name)
	if err != nil {
		ld.err = err
		return nil
	}
	return f32s
}

// linear loads a [out, in] projection kernel and transposes it to [in, out]
func (ld *checkpointLoader) linear(name string) []float32 {
	if ld.err != nil {
		return nil
	}

	resolved := ld.resolve(name)
	desc, ok := ld.sf.Desc(resolved)
	if !ok {
		ld.err = fmt.Errorf("tensor not found: %s", name)
		return nil
	}
	if len(desc.Shape) != 2 {
		ld.err = fmt.Errorf("tensor %s: expected rank 2, got %d", name, len(desc.Shape))
		return nil
	}

	src, err := ld.sf.Float32(resolved)
	if err != nil {
		ld.err = err
		return nil
	}

	rows, cols := desc.Shape[0], desc.Shape[1]
	dst := make([]float32, len(src))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dst[c*rows+r] = src[r*cols+c]
		}
	}
	return dst
}

// resolve handles checkpoints that prefix encoder tensors with "distilbert."
func (ld *checkpointLoader) resolve(name string) string {
	if _, ok := ld.sf.Desc(name); ok {
		return name
	}
	return "distilbert." + name
}
