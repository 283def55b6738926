package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// HFTokenizer encodes text with the vocabulary of a Hugging Face
// tokenizer.json file.
type HFTokenizer struct {
	added     map[string]int64
	addedByID map[int64]string
	lengths   []int // distinct added-token lengths, longest first
	leading   [256]bool

	normalize func(string) string
	split     bool
	byteLevel bool
	bpe       *bpeModel
	reverse   map[int64]string
	fallback  Tokenizer
}

type addedTokenJSON struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

type tokenizerJSON struct {
	AddedTokens  []addedTokenJSON `json:"added_tokens"`
	Normalizer   json.RawMessage  `json:"normalizer"`
	PreTokenizer json.RawMessage  `json:"pre_tokenizer"`
	Model        json.RawMessage  `json:"model"`
}

type loadOptions struct {
	fallback Tokenizer
}

// Option configures LoadHF and ParseHF.
type Option func(*loadOptions)

// WithFallback encodes text between added tokens with t instead of the
// tokenizer.json model. It is required when the file uses a model or
// pre-tokenizer this package does not implement.
func WithFallback(t Tokenizer) Option {
	return func(o *loadOptions) { o.fallback = t }
}

// LoadHF reads a tokenizer.json file.
func LoadHF(path string, opts ...Option) (*HFTokenizer, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer.json: %w", err)
	}

	t, err := ParseHF(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return t, nil
}

// ParseHF builds a tokenizer from tokenizer.json contents.
func ParseHF(data []byte, opts ...Option) (*HFTokenizer, error) {
	var o loadOptions
	for _, fn := range opts {
		fn(&o)
	}

	var raw tokenizerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tokenizer.json: %w", err)
	}

	t := &HFTokenizer{
		added:     make(map[string]int64, len(raw.AddedTokens)),
		addedByID: make(map[int64]string, len(raw.AddedTokens)),
		fallback:  o.fallback,
	}

	for _, tok := range raw.AddedTokens {
		if tok.Content == "" {
			return nil, fmt.Errorf("added token %d has empty content", tok.ID)
		}
		t.added[tok.Content] = tok.ID
		t.addedByID[tok.ID] = tok.Content
		t.leading[tok.Content[0]] = true
		if !slices.Contains(t.lengths, len(tok.Content)) {
			t.lengths = append(t.lengths, len(tok.Content))
		}
	}
	slices.Sort(t.lengths)
	slices.Reverse(t.lengths)

	if err := t.loadModel(raw); err != nil {
		if o.fallback == nil {
			return nil, err
		}
		t.bpe, t.reverse = nil, nil
	}

	return t, nil
}

func (t *HFTokenizer) loadModel(raw tokenizerJSON) error {
	normalize, err := parseNormalizer(raw.Normalizer)
	if err != nil {
		return err
	}

	var stages preTokenizerStages
	if err := stages.parse(raw.PreTokenizer); err != nil {
		return err
	}

	var model bpeJSON
	if len(raw.Model) == 0 {
		return errors.New("tokenizer.json has no model")
	}
	if err := json.Unmarshal(raw.Model, &model); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if model.Type != "BPE" {
		return fmt.Errorf("unsupported model type %q", model.Type)
	}

	bpe, err := newBPEModel(model)
	if err != nil {
		return err
	}

	t.normalize = normalize
	t.split = stages.split
	t.byteLevel = stages.byteLevel
	t.bpe = bpe
	t.reverse = make(map[int64]string, len(model.Vocab))
	for symbol, id := range model.Vocab {
		t.reverse[id] = symbol
	}

	return nil
}

// VocabSize returns the number of model and added tokens.
func (t *HFTokenizer) VocabSize() int {
	n := len(t.reverse)
	for id := range t.addedByID {
		if _, dup := t.reverse[id]; !dup {
			n++
		}
	}

	return n
}

// AddedTokenID returns the id of an added token such as "<|im_start|>".
func (t *HFTokenizer) AddedTokenID(content string) (int64, bool) {
	id, ok := t.added[content]
	return id, ok
}

// Encode splits out added tokens verbatim and encodes the text between them.
func (t *HFTokenizer) Encode(text string) ([]int64, error) {
	ids := make([]int64, 0, len(text)/3+1)
	start := 0

	for i := 0; i < len(text); {
		id, n, ok := t.matchAdded(text, i)
		if !ok {
			i++
			continue
		}

		plain, err := t.encodePlain(text[start:i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, plain...)
		ids = append(ids, id)

		i += n
		start = i
	}

	plain, err := t.encodePlain(text[start:])
	if err != nil {
		return nil, err
	}

	return append(ids, plain...), nil
}

// matchAdded finds the longest added token starting at byte i.
func (t *HFTokenizer) matchAdded(text string, i int) (int64, int, bool) {
	if !t.leading[text[i]] {
		return 0, 0, false
	}

	for _, n := range t.lengths {
		if i+n > len(text) {
			continue
		}
		if id, ok := t.added[text[i:i+n]]; ok {
			return id, n, true
		}
	}

	return 0, 0, false
}

func (t *HFTokenizer) encodePlain(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}

	if t.bpe == nil {
		if t.fallback == nil {
			return nil, errors.New("tokenizer has no model for plain text")
		}
		return t.fallback.Encode(s)
	}

	s = t.normalize(s)

	pieces := []string{s}
	if t.split {
		var err error
		if pieces, err = splitPieces(s); err != nil {
			return nil, err
		}
	}

	var ids []int64
	for _, p := range pieces {
		if t.byteLevel {
			p = byteLevelEncode(p)
		}

		pieceIDs, err := t.bpe.encodePiece(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, pieceIDs...)
	}

	return ids, nil
}

// Decode turns ids back into text. Added tokens are written verbatim.
func (t *HFTokenizer) Decode(ids []int64) (string, error) {
	var b strings.Builder

	for _, id := range ids {
		if content, ok := t.addedByID[id]; ok {
			b.WriteString(content)
			continue
		}

		symbol, ok := t.reverse[id]
		if !ok {
			return "", fmt.Errorf("token id %d is not in the vocabulary", id)
		}

		if t.byteLevel {
			b.Write(byteLevelDecode(symbol))
		} else {
			b.WriteString(symbol)
		}
	}

	return b.String(), nil
}

type normalizerJSON struct {
	Type        string            `json:"type"`
	Normalizers []json.RawMessage `json:"normalizers"`
}

func parseNormalizer(raw json.RawMessage) (func(string) string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return func(s string) string { return s }, nil
	}

	var n normalizerJSON
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode normalizer: %w", err)
	}

	switch n.Type {
	case "NFC":
		return norm.NFC.String, nil
	case "NFD":
		return norm.NFD.String, nil
	case "NFKC":
		return norm.NFKC.String, nil
	case "NFKD":
		return norm.NFKD.String, nil
	case "Lowercase":
		return strings.ToLower, nil
	case "Sequence":
		steps := make([]func(string) string, 0, len(n.Normalizers))
		for _, child := range n.Normalizers {
			step, err := parseNormalizer(child)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
		return func(s string) string {
			for _, step := range steps {
				s = step(s)
			}
			return s
		}, nil
	default:
		return nil, fmt.Errorf("unsupported normalizer %q", n.Type)
	}
}

type preTokenizerJSON struct {
	Type    string `json:"type"`
	Pattern struct {
		Regex string `json:"Regex"`
	} `json:"pattern"`
	UseRegex       bool              `json:"use_regex"`
	AddPrefixSpace bool              `json:"add_prefix_space"`
	PreTokenizers  []json.RawMessage `json:"pretokenizers"`
}

// preTokenizerStages records which supported pre-tokenizer steps a
// tokenizer.json declares.
type preTokenizerStages struct {
	split     bool
	byteLevel bool
}

func (p *preTokenizerStages) parse(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var pt preTokenizerJSON
	if err := json.Unmarshal(raw, &pt); err != nil {
		return fmt.Errorf("decode pre_tokenizer: %w", err)
	}

	switch pt.Type {
	case "Sequence":
		for _, child := range pt.PreTokenizers {
			if err := p.parse(child); err != nil {
				return err
			}
		}
	case "Split":
		if pt.Pattern.Regex != qwen2SplitPattern {
			return fmt.Errorf("unsupported split pattern %q", pt.Pattern.Regex)
		}
		p.split = true
	case "ByteLevel":
		if pt.UseRegex || pt.AddPrefixSpace {
			return errors.New("unsupported ByteLevel pre_tokenizer options")
		}
		p.byteLevel = true
	default:
		return fmt.Errorf("unsupported pre_tokenizer %q", pt.Type)
	}

	return nil
}
