package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultCodeCount is the number of audio codes the 0.2 codec emits (0..4099).
const DefaultCodeCount = 4100

// ErrTokenizerProbe is returned when the vocabulary cannot represent every
// audio-code marker as a distinct token id.
var ErrTokenizerProbe = errors.New("tokenizer probe failed")

// Tokenizer is the minimal interface needed to probe marker ids.
// It is satisfied by the tokenizer package implementations.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
}

// AudioTokenMap translates between vocabulary token ids and audio codes.
// It is immutable once built and safe for concurrent use.
type AudioTokenMap struct {
	codeByID map[int64]int
	idByCode []int64
}

type probeOptions struct {
	codeCount int
	workers   int
	strict    bool
	logger    *slog.Logger
}

// ProbeOption configures BuildAudioTokenMap.
type ProbeOption func(*probeOptions)

// WithCodeCount overrides the number of audio codes to probe.
func WithCodeCount(n int) ProbeOption {
	return func(o *probeOptions) { o.codeCount = n }
}

// WithProbeWorkers bounds the number of concurrent Encode calls.
func WithProbeWorkers(n int) ProbeOption {
	return func(o *probeOptions) { o.workers = n }
}

// WithStrictProbe rejects markers that encode to more than one id instead of
// keeping the first one.
func WithStrictProbe() ProbeOption {
	return func(o *probeOptions) { o.strict = true }
}

// WithProbeLogger sets the logger used for probe diagnostics.
func WithProbeLogger(l *slog.Logger) ProbeOption {
	return func(o *probeOptions) { o.logger = l }
}

// BuildAudioTokenMap encodes the marker of every audio code once and records
// the resulting id. When a marker encodes to several ids the first one is
// kept, unless WithStrictProbe is given.
//
// Probes may run concurrently; results are merged in code order, so the
// duplicate check and any error reported are the same on every run.
func BuildAudioTokenMap(ctx context.Context, tok Tokenizer, g Grammar, opts ...ProbeOption) (*AudioTokenMap, error) {
	o := probeOptions{
		codeCount: DefaultCodeCount,
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is nil", ErrTokenizerProbe)
	}
	if o.codeCount < 1 {
		return nil, fmt.Errorf("%w: code count must be positive, got %d", ErrTokenizerProbe, o.codeCount)
	}
	if o.workers < 1 {
		o.workers = 1
	}

	encoded := make([][]int64, o.codeCount)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)

	for code := range o.codeCount {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			ids, err := tok.Encode(g.AudioCode(code))
			if err != nil {
				return fmt.Errorf("%w: encode %q: %w", ErrTokenizerProbe, g.AudioCode(code), err)
			}
			encoded[code] = ids

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	m := &AudioTokenMap{
		codeByID: make(map[int64]int, o.codeCount),
		idByCode: make([]int64, o.codeCount),
	}

	for code, ids := range encoded {
		marker := g.AudioCode(code)

		switch {
		case len(ids) == 0:
			return nil, fmt.Errorf("%w: %q encodes to no ids", ErrTokenizerProbe, marker)
		case len(ids) > 1 && o.strict:
			return nil, fmt.Errorf("%w: %q encodes to %d ids %v", ErrTokenizerProbe, marker, len(ids), ids)
		case len(ids) > 1:
			o.logger.Debug("audio code marker split; keeping first id", "marker", marker, "ids", ids)
		}

		id := ids[0]
		if prev, dup := m.codeByID[id]; dup {
			return nil, fmt.Errorf("%w: codes %d and %d both map to token id %d", ErrTokenizerProbe, prev, code, id)
		}

		m.codeByID[id] = code
		m.idByCode[code] = id
	}

	o.logger.Debug("built audio token map", "codes", o.codeCount, "grammar", g.Version)

	return m, nil
}

// NewAudioTokenMap builds a map from explicit ids, where ids[code] is the
// token id of that code. It applies the same uniqueness rules as
// BuildAudioTokenMap.
func NewAudioTokenMap(ids []int64) (*AudioTokenMap, error) {
	m := &AudioTokenMap{
		codeByID: make(map[int64]int, len(ids)),
		idByCode: append([]int64(nil), ids...),
	}

	for code, id := range ids {
		if prev, dup := m.codeByID[id]; dup {
			return nil, fmt.Errorf("%w: codes %d and %d both map to token id %d", ErrTokenizerProbe, prev, code, id)
		}
		m.codeByID[id] = code
	}

	return m, nil
}

// CodeFor returns the audio code of a token id.
func (m *AudioTokenMap) CodeFor(id int64) (int, bool) {
	code, ok := m.codeByID[id]
	return code, ok
}

// TokenFor returns the token id of an audio code.
func (m *AudioTokenMap) TokenFor(code int) (int64, bool) {
	if code < 0 || code >= len(m.idByCode) {
		return 0, false
	}
	return m.idByCode[code], true
}

// Len returns the number of audio codes in the map.
func (m *AudioTokenMap) Len() int {
	return len(m.idByCode)
}
