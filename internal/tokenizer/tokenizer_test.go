package tokenizer

import (
	"reflect"
	"testing"
)

func testVocab() []string {
	return []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
		"cricket", "is", "awesome", ",", "easily", "the", "best",
		"sport", "in", "world", "!",
		"un", "##aff", "##able", "##s",
	}
}

func newTestTokenizer(t *testing.T, cfg Config) *Tokenizer {
	t.Helper()

	tok, err := New(testVocab(), nil, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tok
}

func TestEncodeSentence(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true, RemoveAccents: true})

	ids, err := tok.Encode("cricket is awesome, easily the best sport in the world!")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []int{2, 5, 6, 7, 8, 9, 10, 11, 12, 13, 10, 14, 15, 3}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode = %v, want %v", ids, want)
	}
}

func TestLowercasing(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true})

	got := tok.Tokenize("CRICKET Is The BEST")
	want := []string{"cricket", "is", "the", "best"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestCasedKeepsCase(t *testing.T) {
	tok := newTestTokenizer(t, Config{})

	got := tok.Tokenize("Cricket is the best")
	// "Cricket" is not in the vocab without lowercasing
	want := []string{"[UNK]", "is", "the", "best"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestAccentStripping(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true, RemoveAccents: true})

	got := tok.Tokenize("crícket")
	want := []string{"cricket"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestWordPieceSubwords(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true})

	got := tok.Tokenize("unaffable")
	want := []string{"un", "##aff", "##able"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestWordPieceNoSegmentation(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true})

	got := tok.Tokenize("zzz")
	want := []string{"[UNK]"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestPunctuationSplitting(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true})

	got := tok.Tokenize("awesome,easily!")
	want := []string{"awesome", ",", "easily", "!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestLongWordBecomesUnknown(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true})

	long := make([]byte, 0, maxWordChars+1)
	for i := 0; i < maxWordChars+1; i++ {
		long = append(long, 's')
	}

	got := tok.Tokenize(string(long))
	want := []string{"[UNK]"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestEmptyInput(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true})

	ids, err := tok.Encode("   ")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Only [CLS] and [SEP] survive
	want := []int{2, 3}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode = %v, want %v", ids, want)
	}
}

func TestDecode(t *testing.T) {
	tok := newTestTokenizer(t, Config{Lowercase: true})

	ids, err := tok.Encode("unaffable sport")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	text, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if text != "unaffable sport" {
		t.Errorf("Decode = %q, want %q", text, "unaffable sport")
	}
}

func TestMissingUnknownToken(t *testing.T) {
	if _, err := New([]string{"hello", "world"}, nil, Config{}); err == nil {
		t.Error("expected error for vocabulary without [UNK]")
	}
}

func TestSpecialIDsFromVocab(t *testing.T) {
	tok := newTestTokenizer(t, Config{})

	if tok.ClsID() != 2 || tok.SepID() != 3 || tok.PadID() != 0 {
		t.Errorf("special IDs = cls %d sep %d pad %d", tok.ClsID(), tok.SepID(), tok.PadID())
	}
}
