package tokenizer

import (
	"fmt"
	"os"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// SentencePieceTokenizer implements Tokenizer using a pure-Go UNIGRAM
// SentencePiece model.
type SentencePieceTokenizer struct {
	proc    gosp.Sentencepiece
	pieces  int
	control map[string]int64
}

// NewSentencePieceTokenizer loads a SentencePiece model from the given path.
func NewSentencePieceTokenizer(modelPath string) (*SentencePieceTokenizer, error) {
	if modelPath == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read sentencepiece model: %w", err)
	}

	var model gosp.ModelProto
	if err := proto.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("parse sentencepiece model %q: %w", modelPath, err)
	}

	control := make(map[string]int64)
	for i, piece := range model.GetPieces() {
		if piece.GetType() == gosp.ModelProto_SentencePiece_CONTROL {
			control[piece.GetPiece()] = int64(i)
		}
	}

	proc, err := gosp.NewSentencepieceFromFile(modelPath, false)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %q: %w", modelPath, err)
	}

	return &SentencePieceTokenizer{
		proc:    proc,
		pieces:  len(model.GetPieces()),
		control: control,
	}, nil
}

// VocabSize returns the number of pieces in the model.
func (t *SentencePieceTokenizer) VocabSize() int { return t.pieces }

// ControlID returns the id of a control piece such as "<s>".
func (t *SentencePieceTokenizer) ControlID(piece string) (int64, bool) {
	id, ok := t.control[piece]
	return id, ok
}

// Encode tokenizes text and returns SentencePiece token IDs as int64.
func (t *SentencePieceTokenizer) Encode(text string) ([]int64, error) {
	if text == "" {
		return []int64{}, nil
	}

	ids := t.proc.TokenizeToIDs(text)

	result := make([]int64, len(ids))
	for i, id := range ids {
		result[i] = int64(id)
	}

	return result, nil
}
