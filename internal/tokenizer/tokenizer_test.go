package tokenizer

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// modelPath returns the path to a SentencePiece model, skipping if absent.
// OUTETTS_PATHS_TOKENIZER_MODEL wins; otherwise models/tokenizer.model is
// searched for from the package dir upwards.
func modelPath(t *testing.T) string {
	t.Helper()

	if p := os.Getenv("OUTETTS_PATHS_TOKENIZER_MODEL"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	dir, err := filepath.Abs(".")
	if err != nil {
		t.Fatalf("abs path: %v", err)
	}

	for {
		candidate := filepath.Join(dir, "models", "tokenizer.model")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	t.Skip("no SentencePiece model found; set OUTETTS_PATHS_TOKENIZER_MODEL")

	return ""
}

func TestNewSentencePieceTokenizer_ValidModel(t *testing.T) {
	path := modelPath(t)

	tok, err := NewSentencePieceTokenizer(path)
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer(%q): %v", path, err)
	}

	if tok.VocabSize() == 0 {
		t.Fatal("expected a non-empty vocabulary")
	}
}

func TestNewSentencePieceTokenizer_MissingFile(t *testing.T) {
	_, err := NewSentencePieceTokenizer("/nonexistent/tokenizer.model")
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestNewSentencePieceTokenizer_NotAModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.model")
	if err := os.WriteFile(path, []byte{0xff, 0xff, 0xff}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewSentencePieceTokenizer(path); err == nil {
		t.Fatal("expected error for a truncated protobuf")
	}
}

func TestNewSentencePieceTokenizer_EmptyPath(t *testing.T) {
	_, err := NewSentencePieceTokenizer("")
	if !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got: %v", err)
	}
}

func TestSentencePiece_EmptyString(t *testing.T) {
	tok, err := NewSentencePieceTokenizer(modelPath(t))
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer: %v", err)
	}

	got, err := tok.Encode("")
	if err != nil {
		t.Fatalf("Encode(\"\") should not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Encode(\"\") = %v, want empty slice", got)
	}
}

func TestSentencePiece_TokenIDsInRange(t *testing.T) {
	tok, err := NewSentencePieceTokenizer(modelPath(t))
	if err != nil {
		t.Fatalf("NewSentencePieceTokenizer: %v", err)
	}

	ids, err := tok.Encode("The quick brown fox jumps over the lazy dog.")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(ids) == 0 {
		t.Fatal("Encode returned empty result")
	}

	for i, id := range ids {
		if id < 0 || id >= int64(tok.VocabSize()) {
			t.Errorf("token[%d] = %d out of vocab range [0, %d)", i, id, tok.VocabSize())
		}
	}

	again, err := tok.Encode("The quick brown fox jumps over the lazy dog.")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !slices.Equal(ids, again) {
		t.Errorf("Encode is not deterministic: %v vs %v", ids, again)
	}
}

func TestSentencePiece_ImplementsInterface(t *testing.T) {
	var _ Tokenizer = (*SentencePieceTokenizer)(nil)
	var _ Tokenizer = (*HFTokenizer)(nil)
}
