// Package convert translates Hugging Face DistilBERT checkpoints into GGUF
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/headlands-org/go-distilbert/internal/gguf"
)

type Parameters struct {
	Architectures []string `json:"architectures"`
	VocabSize     uint32   `json:"vocab_size"`
}

func (Parameters) KV(v *Vocabulary) map[string]any {
	kv := map[string]any{
		"general.file_type":         uint32(0),
		"tokenizer.ggml.tokens":     v.Tokens,
		"tokenizer.ggml.token_type": v.Types,
	}

	for key, id := range v.SpecialIDs() {
		kv[fmt.Sprintf("tokenizer.ggml.%s_token_id", key)] = uint32(id)
	}

	return kv
}

type Converter interface {
	KV(*Vocabulary) map[string]any
	Tensors([]Tensor) []gguf.Tensor

	tensorName(string) (string, error)
}

// Convert reads config.json, vocab.txt, and the checkpoint weights from d
// and writes the converted model to ws.
func Convert(d string, ws io.WriteSeeker) error {
	f, err := os.Open(filepath.Join(d, "config.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	var p Parameters
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return err
	}

	if len(p.Architectures) < 1 {
		return errors.New("unknown architecture")
	}

	var c Converter
	switch p.Architectures[0] {
	case "DistilBertModel", "DistilBertForMaskedLM", "DistilBertForSequenceClassification":
		c = &distilbert{}
	default:
		return fmt.Errorf("unsupported architecture %q", p.Architectures[0])
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return err
	}

	v, err := parseVocabulary(d)
	if err != nil {
		return err
	}

	if int(p.VocabSize) != len(v.Tokens) {
		return fmt.Errorf("vocabulary size mismatch: config says %d, vocab.txt has %d", p.VocabSize, len(v.Tokens))
	}

	ts, err := parseTensors(d)
	if err != nil {
		return err
	}

	return gguf.WriteGGUF(ws, c.KV(v), c.Tensors(ts))
}

func cutLast(s, sep string) (before, after string, ok bool) {
	i := strings.LastIndex(s, sep)
	if i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
