// Package distilbert provides a high-level API for converted DistilBERT
// models in GGUF format.
package distilbert

import (
	"context"
	"fmt"

	"github.com/headlands-org/go-distilbert/internal/model"
)

// Runtime is the main interface for the encoder runtime
type Runtime interface {
	// Encode tokenizes text and returns the final hidden states as a
	// [seq, dim] row-major slice.
	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeTokens runs the encoder over pre-tokenized IDs
	EncodeTokens(ctx context.Context, ids []int) ([]float32, error)

	// Tokenize returns the token IDs for text, including [CLS] and [SEP]
	Tokenize(text string) ([]int, error)

	// HiddenDim returns the hidden state dimension
	HiddenDim() int

	// MaxSeqLen returns the maximum sequence length
	MaxSeqLen() int

	// Close releases resources
	Close() error
}

type encoderRuntime struct {
	model *model.Model
}

// Open opens a converted GGUF model file and returns a Runtime
func Open(path string) (Runtime, error) {
	m, err := model.LoadGGUF(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	return &encoderRuntime{model: m}, nil
}

func (r *encoderRuntime) Encode(ctx context.Context, text string) ([]float32, error) {
	ids, err := r.Tokenize(text)
	if err != nil {
		return nil, err
	}
	return r.EncodeTokens(ctx, ids)
}

func (r *encoderRuntime) EncodeTokens(ctx context.Context, ids []int) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return r.model.Forward(ids)
}

func (r *encoderRuntime) Tokenize(text string) ([]int, error) {
	return r.model.Tokenizer().Encode(text)
}

func (r *encoderRuntime) HiddenDim() int {
	return r.model.Config().EmbedDim
}

func (r *encoderRuntime) MaxSeqLen() int {
	return r.model.Config().MaxSeqLen
}

func (r *encoderRuntime) Close() error {
	return r.model.Close()
}
