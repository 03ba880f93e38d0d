// Command distilbert-convert downloads a DistilBERT checkpoint, converts it
// to GGUF, and verifies the converted model against the source weights.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/headlands-org/go-distilbert/internal/convert"
	"github.com/headlands-org/go-distilbert/internal/hub"
	"github.com/headlands-org/go-distilbert/internal/model"
	"github.com/headlands-org/go-distilbert/internal/tokenizer"
	"github.com/headlands-org/go-distilbert/internal/verify"
)

type preset struct {
	ModelID   string
	Lowercase bool
}

var presets = map[string]preset{
	"distil_bert_base_en_uncased":  {"distilbert-base-uncased", true},
	"distil_bert_base_en_cased":    {"distilbert-base-cased", false},
	"distil_bert_base_multi_cased": {"distilbert-base-multilingual-cased", false},
}

const verifySentence = "cricket is awesome, easily the best sport in the world!"

func main() {
	presetName := flag.String("preset", "", "checkpoint preset to convert (required)")
	dir := flag.String("dir", "models", "working directory for downloads and output")
	token := flag.String("token", "", "Hugging Face access token for gated downloads")
	text := flag.String("text", verifySentence, "sentence used to verify the converted model")
	flag.Parse()

	p, ok := presets[*presetName]
	if !ok {
		names := make([]string, 0, len(presets))
		for name := range presets {
			names = append(names, name)
		}
		sort.Strings(names)
		log.Fatalf("invalid preset %q, must be one of: %s", *presetName, strings.Join(names, ", "))
	}

	ctx := context.Background()
	checkpointDir := filepath.Join(*dir, p.ModelID)

	client := hub.NewClient()
	client.Token = *token

	for _, filename := range []string{"config.json", "vocab.txt", "model.safetensors"} {
		if _, err := client.Download(ctx, p.ModelID, filename, checkpointDir); err != nil {
			log.Fatalf("Failed to download %s: %v", filename, err)
		}
	}

	outPath := filepath.Join(*dir, *presetName+".gguf")
	slog.Info("converting checkpoint", "preset", *presetName, "output", outPath)

	out, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}

	if err := convert.Convert(checkpointDir, out); err != nil {
		out.Close()
		log.Fatalf("Conversion failed: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("Failed to close output file: %v", err)
	}

	if err := verifyOutput(checkpointDir, outPath, p, *text); err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	vocabSum, err := verify.MD5Sum(filepath.Join(checkpointDir, "vocab.txt"))
	if err != nil {
		log.Fatalf("Failed to checksum vocabulary: %v", err)
	}

	modelSum, err := verify.MD5Sum(outPath)
	if err != nil {
		log.Fatalf("Failed to checksum model: %v", err)
	}

	fmt.Printf("Vocab MD5 checksum:  %s\n", vocabSum)
	fmt.Printf("Model MD5 checksum:  %s\n", modelSum)
}

// verifyOutput runs the same sentence through the source checkpoint and the
// converted model and reports how far apart the hidden states are.
func verifyOutput(checkpointDir, outPath string, p preset, text string) error {
	tok, err := loadVocabTokenizer(filepath.Join(checkpointDir, "vocab.txt"), p.Lowercase)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}

	ids, err := tok.Encode(text)
	if err != nil {
		return fmt.Errorf("tokenize: %w", err)
	}
	slog.Info("tokenized verification sentence", "text", text, "tokens", len(ids))

	ref, err := model.LoadSafetensors(checkpointDir)
	if err != nil {
		return fmt.Errorf("load checkpoint model: %w", err)
	}

	conv, err := model.LoadGGUF(outPath)
	if err != nil {
		return fmt.Errorf("load converted model: %w", err)
	}
	defer conv.Close()

	refOut, err := ref.Forward(ids)
	if err != nil {
		return fmt.Errorf("checkpoint forward pass: %w", err)
	}

	convOut, err := conv.Forward(ids)
	if err != nil {
		return fmt.Errorf("converted forward pass: %w", err)
	}

	report, err := verify.Compare(refOut, convOut)
	if err != nil {
		return err
	}

	n := 4
	if len(refOut) < n {
		n = len(refOut)
	}
	fmt.Printf("Checkpoint output[:%d]: %v\n", n, refOut[:n])
	fmt.Printf("Converted output[:%d]:  %v\n", n, convOut[:n])
	fmt.Printf("Output mean difference: %g\n", report.MeanAbsDiff)
	fmt.Printf("Output max difference:  %g\n", report.MaxAbsDiff)

	if !report.Within(1e-5) {
		return fmt.Errorf("outputs diverge: max abs diff %g", report.MaxAbsDiff)
	}

	return nil
}

func loadVocabTokenizer(path string, lowercase bool) (*tokenizer.Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vocab []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		vocab = append(vocab, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return tokenizer.New(vocab, nil, tokenizer.Config{
		Lowercase:     lowercase,
		RemoveAccents: lowercase,
	})
}
