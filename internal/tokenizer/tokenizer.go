// Package tokenizer provides WordPiece tokenization for BERT-family models
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TokenType represents the type of a token
type TokenType int32

const (
	TokenNormal  TokenType = 1
	TokenUnknown TokenType = 2
	TokenControl TokenType = 3
)

// Longer words are mapped straight to UNK, matching BERT's reference
// tokenizer.
const maxWordChars = 100

// Tokenizer is a WordPiece tokenizer
type Tokenizer struct {
	vocab      []string
	tokenTypes []TokenType
	tokenToID  map[string]int
	unkID      int
	clsID      int
	sepID      int
	padID      int
	maskID     int
	normalizer Normalizer
}

// Config holds tokenizer configuration
type Config struct {
	Lowercase     bool
	RemoveAccents bool
}

// New creates a new tokenizer from a vocabulary. Special token IDs are
// resolved by vocabulary lookup.
func New(vocab []string, tokenTypes []TokenType, cfg Config) (*Tokenizer, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}

	if len(tokenTypes) > 0 && len(vocab) != len(tokenTypes) {
		return nil, fmt.Errorf("vocab and tokenTypes length mismatch: %d != %d", len(vocab), len(tokenTypes))
	}

	if len(tokenTypes) == 0 {
		tokenTypes = make([]TokenType, len(vocab))
		for i := range tokenTypes {
			tokenTypes[i] = TokenNormal
		}
	}

	t := &Tokenizer{
		vocab:      vocab,
		tokenTypes: tokenTypes,
		tokenToID:  make(map[string]int, len(vocab)),
		unkID:      -1,
		clsID:      -1,
		sepID:      -1,
		padID:      -1,
		maskID:     -1,
		normalizer: NewNormalizer(cfg.Lowercase, cfg.RemoveAccents),
	}

	for i, token := range vocab {
		t.tokenToID[token] = i
	}

	if id, ok := t.tokenToID["[UNK]"]; ok {
		t.unkID = id
	}
	if id, ok := t.tokenToID["[CLS]"]; ok {
		t.clsID = id
	}
	if id, ok := t.tokenToID["[SEP]"]; ok {
		t.sepID = id
	}
	if id, ok := t.tokenToID["[PAD]"]; ok {
		t.padID = id
	}
	if id, ok := t.tokenToID["[MASK]"]; ok {
		t.maskID = id
	}

	if t.unkID < 0 {
		return nil, fmt.Errorf("vocabulary has no [UNK] token")
	}

	return t, nil
}

// Encode tokenizes text to token IDs, wrapping the sequence in [CLS]/[SEP]
func (t *Tokenizer) Encode(text string) ([]int, error) {
	words := t.basicTokenize(t.normalizer.Normalize(text))

	ids := make([]int, 0, len(words)+2)
	if t.clsID >= 0 {
		ids = append(ids, t.clsID)
	}

	for _, word := range words {
		for _, piece := range t.wordPiece(word) {
			if id, ok := t.tokenToID[piece]; ok {
				ids = append(ids, id)
			} else {
				ids = append(ids, t.unkID)
			}
		}
	}

	if t.sepID >= 0 {
		ids = append(ids, t.sepID)
	}

	return ids, nil
}

// Tokenize returns the token strings for text, without [CLS]/[SEP]
func (t *Tokenizer) Tokenize(text string) []string {
	words := t.basicTokenize(t.normalizer.Normalize(text))

	var pieces []string
	for _, word := range words {
		pieces = append(pieces, t.wordPiece(word)...)
	}
	return pieces
}

// Decode converts token IDs back to text
func (t *Tokenizer) Decode(ids []int) (string, error) {
	var result strings.Builder

	for _, id := range ids {
		if id < 0 || id >= len(t.vocab) {
			continue
		}
		if t.isSpecialToken(id) {
			continue
		}

		token := t.vocab[id]
		if strings.HasPrefix(token, "##") {
			result.WriteString(token[2:])
		} else {
			if result.Len() > 0 {
				result.WriteByte(' ')
			}
			result.WriteString(token)
		}
	}

	return result.String(), nil
}

// basicTokenize cleans the text and splits it into words, treating each
// punctuation rune and each CJK character as its own word.
func (t *Tokenizer) basicTokenize(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r == 0 || r == 0xFFFD || unicode.IsControl(r):
			// Drop control and replacement characters
		case unicode.IsSpace(r):
			flush()
		case isPunct(r) || isCJK(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return words
}

// wordPiece splits a single word into subword pieces by greedy
// longest-match against the vocabulary. Pieces after the first carry the
// "##" continuation prefix. Words with no valid segmentation become UNK.
func (t *Tokenizer) wordPiece(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []string{t.vocab[t.unkID]}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		var match string
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.tokenToID[sub]; ok {
				match = sub
				break
			}
			end--
		}

		if match == "" {
			return []string{t.vocab[t.unkID]}
		}

		pieces = append(pieces, match)
		start = end
	}

	return pieces
}

// isSpecialToken checks if a token ID is a special token
func (t *Tokenizer) isSpecialToken(id int) bool {
	return id == t.unkID || id == t.clsID || id == t.sepID || id == t.padID ||
		id == t.maskID || t.tokenTypes[id] == TokenControl
}

// VocabSize returns the vocabulary size
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// ClsID returns the [CLS] token ID, or -1 if absent
func (t *Tokenizer) ClsID() int { return t.clsID }

// SepID returns the [SEP] token ID, or -1 if absent
func (t *Tokenizer) SepID() int { return t.sepID }

// PadID returns the [PAD] token ID, or -1 if absent
func (t *Tokenizer) PadID() int { return t.padID }

// isPunct reports whether r is treated as punctuation. ASCII symbols such
// as $ and ^ count, matching the BERT basic tokenizer.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// isCJK reports whether r is in the CJK unified ideograph blocks
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}

// Normalizer handles text normalization
type Normalizer struct {
	lowercase     bool
	removeAccents bool
}

// NewNormalizer creates a new normalizer
func NewNormalizer(lowercase, removeAccents bool) Normalizer {
	return Normalizer{
		lowercase:     lowercase,
		removeAccents: removeAccents,
	}
}

// Normalize normalizes text
func (n Normalizer) Normalize(text string) string {
	if n.lowercase {
		text = strings.ToLower(text)
	}

	if n.removeAccents {
		text = n.stripAccents(text)
	}

	return text
}

// stripAccents removes diacritical marks
func (n Normalizer) stripAccents(s string) string {
	t := norm.NFD.String(s)

	var result strings.Builder
	result.Grow(len(t))

	for _, r := range t {
		if !unicode.Is(unicode.Mn, r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// LoadFromGGUF loads a tokenizer from GGUF metadata
func LoadFromGGUF(getMetadata func(string) (interface{}, bool)) (*Tokenizer, error) {
	tokensRaw, ok := getMetadata("tokenizer.ggml.tokens")
	if !ok {
		return nil, fmt.Errorf("tokenizer.ggml.tokens not found")
	}

	tokensArr, ok := tokensRaw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("tokenizer.ggml.tokens is not an array")
	}

	tokens := make([]string, len(tokensArr))
	for i, t := range tokensArr {
		tokens[i], ok = t.(string)
		if !ok {
			return nil, fmt.Errorf("token %d is not a string", i)
		}
	}

	var tokenTypes []TokenType
	if typesRaw, ok := getMetadata("tokenizer.ggml.token_type"); ok {
		if typesArr, ok := typesRaw.([]interface{}); ok {
			tokenTypes = make([]TokenType, len(typesArr))
			for i, t := range typesArr {
				switch v := t.(type) {
				case int32:
					tokenTypes[i] = TokenType(v)
				case uint32:
					tokenTypes[i] = TokenType(v)
				case int:
					tokenTypes[i] = TokenType(v)
				default:
					tokenTypes[i] = TokenNormal
				}
			}
		}
	}

	cfg := Config{
		Lowercase:     getBoolMetadata(getMetadata, "tokenizer.ggml.lowercase", false),
		RemoveAccents: getBoolMetadata(getMetadata, "tokenizer.ggml.remove_accents", false),
	}

	tok, err := New(tokens, tokenTypes, cfg)
	if err != nil {
		return nil, err
	}

	// Metadata IDs win over vocabulary lookup when present
	if val, ok := getMetadata("tokenizer.ggml.unknown_token_id"); ok {
		if id, ok := val.(uint32); ok {
			tok.unkID = int(id)
		}
	}

	if val, ok := getMetadata("tokenizer.ggml.cls_token_id"); ok {
		if id, ok := val.(uint32); ok {
			tok.clsID = int(id)
		}
	}

	if val, ok := getMetadata("tokenizer.ggml.separator_token_id"); ok {
		if id, ok := val.(uint32); ok {
			tok.sepID = int(id)
		}
	}

	if val, ok := getMetadata("tokenizer.ggml.padding_token_id"); ok {
		if id, ok := val.(uint32); ok {
			tok.padID = int(id)
		}
	}

	if val, ok := getMetadata("tokenizer.ggml.mask_token_id"); ok {
		if id, ok := val.(uint32); ok {
			tok.maskID = int(id)
		}
	}

	return tok, nil
}

func getBoolMetadata(getMetadata func(string) (interface{}, bool), key string, defaultVal bool) bool {
	if val, ok := getMetadata(key); ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}
