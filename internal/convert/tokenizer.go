package convert

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	_ int32 = iota
	tokenTypeNormal
	tokenTypeUnknown
	tokenTypeControl
)

type Vocabulary struct {
	Tokens []string
	Types  []int32
}

// specialTokens maps GGUF metadata key stems to the vocabulary entries
// they refer to.
var specialTokens = map[string]string{
	"padding":   "[PAD]",
	"unknown":   "[UNK]",
	"cls":       "[CLS]",
	"separator": "[SEP]",
	"mask":      "[MASK]",
}

// SpecialIDs returns the IDs of the special tokens present in the
// vocabulary, keyed by metadata key stem.
func (v *Vocabulary) SpecialIDs() map[string]int {
	index := make(map[string]int, len(specialTokens))
	for i, t := range v.Tokens {
		for key, token := range specialTokens {
			if t == token {
				index[key] = i
			}
		}
	}
	return index
}

// Lowercased reports whether the vocabulary belongs to an uncased model,
// detected by the absence of uppercase letters.
func (v *Vocabulary) Lowercased() bool {
	for _, t := range v.Tokens {
		for _, r := range t {
			if unicode.IsUpper(r) {
				return false
			}
		}
	}
	return true
}

// parseVocabulary reads a WordPiece vocab.txt: one token per line, token ID
// is the line number.
func parseVocabulary(d string) (*Vocabulary, error) {
	f, err := os.Open(filepath.Join(d, "vocab.txt"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var v Vocabulary
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		v.Tokens = append(v.Tokens, token)

		switch {
		case token == "[UNK]":
			v.Types = append(v.Types, tokenTypeUnknown)
		case strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]"):
			v.Types = append(v.Types, tokenTypeControl)
		default:
			v.Types = append(v.Types, tokenTypeNormal)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab.txt: %w", err)
	}

	if len(v.Tokens) == 0 {
		return nil, fmt.Errorf("vocab.txt is empty")
	}

	return &v, nil
}
