package convert

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"

	"github.com/headlands-org/go-distilbert/internal/gguf"
)

type distilbert struct {
	Parameters
	MaxPositionEmbeddings uint32  `json:"max_position_embeddings"`
	Dim                   uint32  `json:"dim"`
	NLayers               uint32  `json:"n_layers"`
	NHeads                uint32  `json:"n_heads"`
	HiddenDim             uint32  `json:"hidden_dim"`
	Dropout               float32 `json:"dropout"`
	AttentionDropout      float32 `json:"attention_dropout"`
	Activation            string  `json:"activation"`
}

// DistilBERT configs carry no layer norm epsilon; the reference
// implementation hardcodes 1e-12.
const layerNormEps = float32(1e-12)

func (p *distilbert) KV(v *Vocabulary) map[string]any {
	kv := p.Parameters.KV(v)
	kv["general.architecture"] = "distilbert"
	kv["general.name"] = "distilbert"
	kv["distilbert.context_length"] = p.MaxPositionEmbeddings
	kv["distilbert.embedding_length"] = p.Dim
	kv["distilbert.block_count"] = p.NLayers
	kv["distilbert.feed_forward_length"] = p.HiddenDim
	kv["distilbert.vocab_size"] = p.VocabSize
	kv["distilbert.attention.head_count"] = p.NHeads
	kv["distilbert.attention.layer_norm_epsilon"] = layerNormEps
	kv["tokenizer.ggml.model"] = "bert"
	// Uncased checkpoints lowercase and strip accents at tokenization time
	kv["tokenizer.ggml.lowercase"] = v.Lowercased()
	kv["tokenizer.ggml.remove_accents"] = v.Lowercased()
	return kv
}

func (p *distilbert) Tensors(ts []Tensor) []gguf.Tensor {
	var out []gguf.Tensor
	for _, t := range ts {
		name, err := p.tensorName(t.Name())
		if err != nil {
			slog.Debug("skipping unknown tensor", "name", t.Name())
			continue
		}

		shape := t.Shape()
		if transposed(t.Name()) {
			t.SetRepacker(p.repack)
			shape = []uint64{shape[1], shape[0]}
		}

		out = append(out, gguf.Tensor{
			Name:     name,
			Kind:     uint32(gguf.DTypeF32),
			Shape:    shape,
			WriterTo: t,
		})
	}

	return out
}

// transposed reports whether a source tensor is a linear projection kernel,
// stored by the checkpoint as [out, in] and written out as [in, out].
func transposed(n string) bool {
	for _, suffix := range []string{"_lin.weight", ".lin1.weight", ".lin2.weight"} {
		if strings.HasSuffix(n, suffix) {
			return true
		}
	}
	return false
}

func (p *distilbert) tensorName(n string) (string, error) {
	// DistilBertForMaskedLM checkpoints prefix the encoder tensors
	n = strings.TrimPrefix(n, "distilbert.")

	n, suffix, ok := cutLast(n, ".")
	if !ok || (suffix != "weight" && suffix != "bias") {
		return "", fmt.Errorf("invalid tensor name: %q", n)
	}

	var parts []string
	prefix, n, ok := strings.Cut(n, ".")
	if !ok {
		return "", fmt.Errorf("invalid tensor name: %q", n)
	}

	switch prefix {
	case "embeddings":
		switch n {
		case "word_embeddings":
			parts = append(parts, "token_embd")
		case "position_embeddings":
			parts = append(parts, "position_embd")
		case "LayerNorm":
			parts = append(parts, "token_embd_norm")
		default:
			return "", fmt.Errorf("invalid tensor name: %q", n)
		}
	case "transformer":
		layers, n, ok := strings.Cut(n, ".")
		if !ok || layers != "layer" {
			return "", fmt.Errorf("invalid tensor name: %q", n)
		}

		layer, n, ok := strings.Cut(n, ".")
		if !ok {
			return "", fmt.Errorf("invalid tensor name: %q", n)
		}

		if _, err := strconv.Atoi(layer); err != nil {
			return "", fmt.Errorf("invalid tensor name: %q", n)
		}

		parts = append(parts, "blk", layer)

		switch n {
		case "attention.q_lin":
			parts = append(parts, "attn_q")
		case "attention.k_lin":
			parts = append(parts, "attn_k")
		case "attention.v_lin":
			parts = append(parts, "attn_v")
		case "attention.out_lin":
			parts = append(parts, "attn_output")
		case "sa_layer_norm":
			parts = append(parts, "attn_output_norm")
		case "ffn.lin1":
			parts = append(parts, "ffn_up")
		case "ffn.lin2":
			parts = append(parts, "ffn_down")
		case "output_layer_norm":
			parts = append(parts, "layer_output_norm")
		default:
			return "", fmt.Errorf("invalid tensor name: %q", n)
		}
	default:
		return "", fmt.Errorf("invalid tensor name: %q", n)
	}

	return strings.Join(append(parts, suffix), "."), nil
}

func (*distilbert) repack(name string, data []float32, shape []uint64) ([]float32, error) {
	if len(shape) != 2 {
		return nil, fmt.Errorf("unexpected rank for repack of %s: %d", name, len(shape))
	}

	dims := []int{int(shape[0]), int(shape[1])}

	n := tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
	if err := n.T(); err != nil {
		return nil, err
	}

	if err := n.Transpose(); err != nil {
		return nil, err
	}

	ts, err := native.SelectF32(n, 1)
	if err != nil {
		return nil, err
	}

	var f32s []float32
	for _, t := range ts {
		f32s = append(f32s, t...)
	}

	return f32s, nil
}
