package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
)

type symbolPair struct {
	left, right string
}

// bpeModel applies ranked merges to byte-level pre-tokens.
type bpeModel struct {
	vocab        map[string]int64
	ranks        map[symbolPair]int
	unk          int64
	hasUnk       bool
	ignoreMerges bool

	cache sync.Map // pre-token -> []int64
}

type bpeJSON struct {
	Type         string            `json:"type"`
	Vocab        map[string]int64  `json:"vocab"`
	Merges       []json.RawMessage `json:"merges"`
	UnkToken     *string           `json:"unk_token"`
	IgnoreMerges bool              `json:"ignore_merges"`
}

func newBPEModel(raw bpeJSON) (*bpeModel, error) {
	if len(raw.Vocab) == 0 {
		return nil, errors.New("BPE model has an empty vocabulary")
	}

	ranks := make(map[symbolPair]int, len(raw.Merges))
	for i, m := range raw.Merges {
		pair, err := parseMerge(m)
		if err != nil {
			return nil, fmt.Errorf("merge %d: %w", i, err)
		}
		if _, dup := ranks[pair]; !dup {
			ranks[pair] = i
		}
	}

	m := &bpeModel{
		vocab:        raw.Vocab,
		ranks:        ranks,
		ignoreMerges: raw.IgnoreMerges,
	}

	if raw.UnkToken != nil {
		id, ok := raw.Vocab[*raw.UnkToken]
		if !ok {
			return nil, fmt.Errorf("unk token %q is not in the vocabulary", *raw.UnkToken)
		}
		m.unk, m.hasUnk = id, true
	}

	return m, nil
}

// parseMerge accepts both spellings used by tokenizer.json: "a b" and
// ["a", "b"].
func parseMerge(raw json.RawMessage) (symbolPair, error) {
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		left, right, ok := strings.Cut(joined, " ")
		if !ok || left == "" || right == "" {
			return symbolPair{}, fmt.Errorf("malformed merge %q", joined)
		}
		return symbolPair{left, right}, nil
	}

	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return symbolPair{}, fmt.Errorf("malformed merge %s", raw)
	}
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return symbolPair{}, fmt.Errorf("malformed merge %q", parts)
	}

	return symbolPair{parts[0], parts[1]}, nil
}

// encodePiece returns the ids of one pre-token already spelled in the
// byte-level alphabet.
func (m *bpeModel) encodePiece(piece string) ([]int64, error) {
	if cached, ok := m.cache.Load(piece); ok {
		return cached.([]int64), nil
	}

	if m.ignoreMerges {
		if id, ok := m.vocab[piece]; ok {
			return []int64{id}, nil
		}
	}

	symbols := m.merge(piece)

	ids := make([]int64, 0, len(symbols))
	for _, s := range symbols {
		id, ok := m.vocab[s]
		switch {
		case ok:
			ids = append(ids, id)
		case m.hasUnk:
			ids = append(ids, m.unk)
		default:
			return nil, fmt.Errorf("symbol %q is not in the vocabulary", s)
		}
	}

	m.cache.Store(piece, ids)

	return ids, nil
}

// merge repeatedly joins the adjacent pair with the lowest rank.
func (m *bpeModel) merge(piece string) []string {
	symbols := make([]string, 0, len(piece))
	for _, r := range piece {
		symbols = append(symbols, string(r))
	}

	for len(symbols) > 1 {
		best, bestRank := -1, math.MaxInt
		for i := range len(symbols) - 1 {
			if rank, ok := m.ranks[symbolPair{symbols[i], symbols[i+1]}]; ok && rank < bestRank {
				best, bestRank = i, rank
			}
		}
		if best < 0 {
			break
		}

		left, right := symbols[best], symbols[best+1]
		merged := symbols[:0:0]
		for i := 0; i < len(symbols); {
			if i+1 < len(symbols) && symbols[i] == left && symbols[i+1] == right {
				merged = append(merged, left+right)
				i += 2
				continue
			}
			merged = append(merged, symbols[i])
			i++
		}
		symbols = merged
	}

	return symbols
}
