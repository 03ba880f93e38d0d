// Package model implements the DistilBERT encoder on float32 weights,
// loadable from either a converted GGUF file or a source checkpoint.
package model

import (
	"fmt"
	"math"

	"github.com/headlands-org/go-distilbert/internal/gguf"
	"github.com/headlands-org/go-distilbert/internal/tokenizer"
)

// Config holds the encoder hyperparameters
type Config struct {
	VocabSize int
	MaxSeqLen int
	EmbedDim  int
	NumLayers int
	NumHeads  int
	HeadDim   int
	IntermDim int
	NormEps   float32
}

// Layer holds the weights of one transformer block. Projection weights are
// stored row-major as [in, out] so a row streams all output features for one
// input feature.
type Layer struct {
	AttnQWeight   []float32
	AttnQBias     []float32
	AttnKWeight   []float32
	AttnKBias     []float32
	AttnVWeight   []float32
	AttnVBias     []float32
	AttnOutWeight []float32
	AttnOutBias   []float32

	AttnNormWeight []float32
	AttnNormBias   []float32

	FFNUpWeight   []float32
	FFNUpBias     []float32
	FFNDownWeight []float32
	FFNDownBias   []float32

	OutNormWeight []float32
	OutNormBias   []float32
}

// Model is a DistilBERT encoder
type Model struct {
	config    Config
	tokenizer *tokenizer.Tokenizer

	tokenEmbed      []float32 // [vocab, dim]
	posEmbed        []float32 // [maxSeq, dim]
	embedNormWeight []float32
	embedNormBias   []float32

	layers []Layer

	reader *gguf.Reader
}

// LoadGGUF loads a converted model from a GGUF file
func LoadGGUF(path string) (*Model, error) {
	reader, err := gguf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gguf: %w", err)
	}

	m, err := loadGGUF(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}

	return m, nil
}

// LoadGGUFBytes loads a converted model from an in-memory GGUF image
func LoadGGUFBytes(data []byte) (*Model, error) {
	reader, err := gguf.OpenBytes(data)
	if err != nil {
		return nil, fmt.Errorf("open gguf: %w", err)
	}

	return loadGGUF(reader)
}

func loadGGUF(reader *gguf.Reader) (*Model, error) {
	config, err := parseConfig(reader)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	tok, err := tokenizer.LoadFromGGUF(reader.GetMetadata)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	m := &Model{
		config:    config,
		tokenizer: tok,
		reader:    reader,
		layers:    make([]Layer, config.NumLayers),
	}

	if err := m.loadWeights(); err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}

	return m, nil
}

// Close releases model resources
func (m *Model) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}

// Config returns the model configuration
func (m *Model) Config() Config {
	return m.config
}

// Tokenizer returns the tokenizer, or nil for checkpoint-loaded models
func (m *Model) Tokenizer() *tokenizer.Tokenizer {
	return m.tokenizer
}

func parseConfig(r *gguf.Reader) (Config, error) {
	cfg := Config{NormEps: 1e-12}

	arch := ""
	if val, ok := r.GetMetadata("general.architecture"); ok {
		arch = val.(string)
	}
	if arch != "distilbert" {
		return cfg, fmt.Errorf("unsupported architecture %q", arch)
	}
	prefix := arch + "."

	if val, ok := r.GetMetadata(prefix + "embedding_length"); ok {
		cfg.EmbedDim = int(val.(uint32))
	} else {
		return cfg, fmt.Errorf("%sembedding_length not found", prefix)
	}

	if val, ok := r.GetMetadata(prefix + "block_count"); ok {
		cfg.NumLayers = int(val.(uint32))
	} else {
		return cfg, fmt.Errorf("%sblock_count not found", prefix)
	}

	if val, ok := r.GetMetadata(prefix + "attention.head_count"); ok {
		cfg.NumHeads = int(val.(uint32))
	} else {
		return cfg, fmt.Errorf("%sattention.head_count not found", prefix)
	}

	if cfg.NumHeads <= 0 || cfg.EmbedDim%cfg.NumHeads != 0 {
		return cfg, fmt.Errorf("embedding length %d not divisible by head count %d", cfg.EmbedDim, cfg.NumHeads)
	}
	cfg.HeadDim = cfg.EmbedDim / cfg.NumHeads

	if val, ok := r.GetMetadata(prefix + "feed_forward_length"); ok {
		cfg.IntermDim = int(val.(uint32))
	} else {
		return cfg, fmt.Errorf("%sfeed_forward_length not found", prefix)
	}

	if val, ok := r.GetMetadata(prefix + "context_length"); ok {
		cfg.MaxSeqLen = int(val.(uint32))
	} else {
		return cfg, fmt.Errorf("%scontext_length not found", prefix)
	}

	if val, ok := r.GetMetadata(prefix + "attention.layer_norm_epsilon"); ok {
		if f, ok := val.(float32); ok {
			cfg.NormEps = f
		}
	}

	if val, ok := r.GetMetadata(prefix + "vocab_size"); ok {
		cfg.VocabSize = int(val.(uint32))
	} else if tokens, ok := r.GetMetadata("tokenizer.ggml.tokens"); ok {
		if arr, ok := tokens.([]interface{}); ok {
			cfg.VocabSize = len(arr)
		}
	}

	if cfg.VocabSize == 0 {
		return cfg, fmt.Errorf("vocab size not found")
	}

	return cfg, nil
}

func (m *Model) loadWeights() error {
	if err := m.loadTensorF32("token_embd.weight", &m.tokenEmbed); err != nil {
		return err
	}
	if err := m.loadTensorF32("position_embd.weight", &m.posEmbed); err != nil {
		return err
	}
	if err := m.loadTensorF32("token_embd_norm.weight", &m.embedNormWeight); err != nil {
		return err
	}
	if err := m.loadTensorF32("token_embd_norm.bias", &m.embedNormBias); err != nil {
		return err
	}

	if want := m.config.VocabSize * m.config.EmbedDim; len(m.tokenEmbed) != want {
		return fmt.Errorf("token embedding has %d elements, want %d", len(m.tokenEmbed), want)
	}

	for i := 0; i < m.config.NumLayers; i++ {
		if err := m.loadLayer(i); err != nil {
			return fmt.Errorf("load layer %d: %w", i, err)
		}
	}

	return nil
}

func (m *Model) loadLayer(layerIdx int) error {
	prefix := fmt.Sprintf("blk.%d", layerIdx)
	layer := &m.layers[layerIdx]

	for _, w := range []struct {
		name string
		dst  *[]float32
	}{
		{prefix + ".attn_q.weight", &layer.AttnQWeight},
		{prefix + ".attn_q.bias", &layer.AttnQBias},
		{prefix + ".attn_k.weight", &layer.AttnKWeight},
		{prefix + ".attn_k.bias", &layer.AttnKBias},
		{prefix + ".attn_v.weight", &layer.AttnVWeight},
		{prefix + ".attn_v.bias", &layer.AttnVBias},
		{prefix + ".attn_output.weight", &layer.AttnOutWeight},
		{prefix + ".attn_output.bias", &layer.AttnOutBias},
		{prefix + ".attn_output_norm.weight", &layer.AttnNormWeight},
		{prefix + ".attn_output_norm.bias", &layer.AttnNormBias},
		{prefix + ".ffn_up.weight", &layer.FFNUpWeight},
		{prefix + ".ffn_up.bias", &layer.FFNUpBias},
		{prefix + ".ffn_down.weight", &layer.FFNDownWeight},
		{prefix + ".ffn_down.bias", &layer.FFNDownBias},
		{prefix + ".layer_output_norm.weight", &layer.OutNormWeight},
		{prefix + ".layer_output_norm.bias", &layer.OutNormBias},
	} {
		if err := m.loadTensorF32(w.name, w.dst); err != nil {
			return err
		}
	}

	return nil
}

func (m *Model) loadTensorF32(name string, dst *[]float32) error {
	desc, ok := m.reader.GetTensor(name)
	if !ok {
		return fmt.Errorf("tensor not found: %s", name)
	}

	data, err := m.reader.GetTensorData(name)
	if err != nil {
		return err
	}

	f32s, err := gguf.NewTensorView(desc, data).Float32()
	if err != nil {
		return err
	}

	*dst = f32s
	return nil
}

// attentionScale is 1/sqrt(headDim)
func (c Config) attentionScale() float32 {
	return float32(1.0 / math.Sqrt(float64(c.HeadDim)))
}
