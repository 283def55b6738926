// Package tokenizer converts prompt text to vocabulary ids for the OuteTTS
// language model.
//
// The primary implementation reads a Hugging Face tokenizer.json: added
// tokens (the prompt markers and the audio-code markers) are split out
// first, and the remaining text goes through byte-level BPE. A SentencePiece
// model can stand in for the BPE stage.
package tokenizer

import "errors"

// ErrEmptyPath is returned when a loader is called with an empty path.
var ErrEmptyPath = errors.New("tokenizer model path must not be empty")

// Tokenizer encodes text into vocabulary ids. Implementations are safe for
// concurrent use.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
}
