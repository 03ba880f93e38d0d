package model

import (
	"fmt"

	"github.com/headlands-org/go-distilbert/internal/kernels"
)

// Forward runs the encoder over a token ID sequence and returns the final
// hidden states as a [seq, dim] row-major slice.
func (m *Model) Forward(tokenIDs []int) ([]float32, error) {
	seq := len(tokenIDs)
	if seq == 0 {
		return nil, fmt.Errorf("empty token sequence")
	}
	if seq > m.config.MaxSeqLen {
		return nil, fmt.Errorf("sequence length %d exceeds maximum %d", seq, m.config.MaxSeqLen)
	}

	dim := m.config.EmbedDim

	// Token plus learned position embeddings, then embedding LayerNorm
	x := make([]float32, seq*dim)
	for t, id := range tokenIDs {
		if id < 0 || id >= m.config.VocabSize {
			return nil, fmt.Errorf("token ID %d out of range", id)
		}
		row := x[t*dim : (t+1)*dim]
		copy(row, m.tokenEmbed[id*dim:(id+1)*dim])
		kernels.VecAdd(row, row, m.posEmbed[t*dim:(t+1)*dim], dim)
	}
	kernels.LayerNormRows(x, m.embedNormWeight, m.embedNormBias, seq, dim, m.config.NormEps)

	ws := newForwardWorkspace(seq, dim, m.config.IntermDim)
	for i := range m.layers {
		m.forwardLayer(&m.layers[i], x, seq, ws)
	}

	return x, nil
}

type forwardWorkspace struct {
	q, k, v []float32 // [seq, dim]
	attn    []float32 // [seq, dim]
	proj    []float32 // [seq, dim]
	ff      []float32 // [seq, intermDim]
	scores  []float32 // [seq]
}

func newForwardWorkspace(seq, dim, intermDim int) *forwardWorkspace {
	return &forwardWorkspace{
		q:      make([]float32, seq*dim),
		k:      make([]float32, seq*dim),
		v:      make([]float32, seq*dim),
		attn:   make([]float32, seq*dim),
		proj:   make([]float32, seq*dim),
		ff:     make([]float32, seq*intermDim),
		scores: make([]float32, seq),
	}
}

// forwardLayer applies one post-norm transformer block to x in place
func (m *Model) forwardLayer(layer *Layer, x []float32, seq int, ws *forwardWorkspace) {
	cfg := m.config
	dim := cfg.EmbedDim

	kernels.MatMul(ws.q, x, layer.AttnQWeight, layer.AttnQBias, seq, dim, dim)
	kernels.MatMul(ws.k, x, layer.AttnKWeight, layer.AttnKBias, seq, dim, dim)
	kernels.MatMul(ws.v, x, layer.AttnVWeight, layer.AttnVBias, seq, dim, dim)

	m.attention(ws, seq)

	kernels.MatMul(ws.proj, ws.attn, layer.AttnOutWeight, layer.AttnOutBias, seq, dim, dim)
	kernels.VecAdd(x, x, ws.proj, seq*dim)
	kernels.LayerNormRows(x, layer.AttnNormWeight, layer.AttnNormBias, seq, dim, cfg.NormEps)

	kernels.MatMul(ws.ff, x, layer.FFNUpWeight, layer.FFNUpBias, seq, dim, cfg.IntermDim)
	kernels.GELU(ws.ff, ws.ff, seq*cfg.IntermDim)
	kernels.MatMul(ws.proj, ws.ff, layer.FFNDownWeight, layer.FFNDownBias, seq, cfg.IntermDim, dim)
	kernels.VecAdd(x, x, ws.proj, seq*dim)
	kernels.LayerNormRows(x, layer.OutNormWeight, layer.OutNormBias, seq, dim, cfg.NormEps)
}

// attention computes scaled dot-product attention per head. Head vectors
// are contiguous slices of the [seq, dim] projections.
func (m *Model) attention(ws *forwardWorkspace, seq int) {
	cfg := m.config
	dim := cfg.EmbedDim
	dh := cfg.HeadDim
	scale := cfg.attentionScale()

	for h := 0; h < cfg.NumHeads; h++ {
		off := h * dh

		for t := 0; t < seq; t++ {
			qv := ws.q[t*dim+off : t*dim+off+dh]

			for s := 0; s < seq; s++ {
				kv := ws.k[s*dim+off : s*dim+off+dh]
				ws.scores[s] = kernels.DotProduct(qv, kv, dh) * scale
			}
			kernels.Softmax(ws.scores, seq)

			out := ws.attn[t*dim+off : t*dim+off+dh]
			for i := range out {
				out[i] = 0
			}
			for s := 0; s < seq; s++ {
				p := ws.scores[s]
				vv := ws.v[s*dim+off : s*dim+off+dh]
				for i := 0; i < dh; i++ {
					out[i] += p * vv[i]
				}
			}
		}
	}
}
