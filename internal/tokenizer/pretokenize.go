package tokenizer

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// qwen2SplitPattern is the pre-tokenizer regex of the Qwen2 tokenizer family
// that OuteTTS 0.2 is built on. It needs lookahead, which rules out Go's
// regexp package.
const qwen2SplitPattern = `(?i:'s|'t|'re|'ve|'m|'ll|'d)|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`

var qwen2Split = regexp2.MustCompile(qwen2SplitPattern, regexp2.None)

// splitPieces cuts s into pre-tokens. Concatenating the result gives s back.
func splitPieces(s string) ([]string, error) {
	pieces := make([]string, 0, len(s)/3+1)

	m, err := qwen2Split.FindStringMatch(s)
	for ; m != nil && err == nil; m, err = qwen2Split.FindNextMatch(m) {
		pieces = append(pieces, m.String())
	}
	if err != nil {
		return nil, fmt.Errorf("pre-tokenize: %w", err)
	}

	return pieces, nil
}
