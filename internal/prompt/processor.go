// Package prompt assembles OuteTTS completion prompts and reads audio codes
// back out of generated token streams.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/example/go-outetts/internal/text"
)

// Processor builds completion prompts for a fixed grammar and language set.
// It holds no mutable state and may be shared between goroutines.
type Processor struct {
	grammar   Grammar
	tokens    *AudioTokenMap
	languages []string
	logger    *slog.Logger
}

type options struct {
	grammar Grammar
	logger  *slog.Logger
	probe   []ProbeOption
}

// Option configures a Processor.
type Option func(*options)

// WithGrammar overrides the default marker set.
func WithGrammar(g Grammar) Option {
	return func(o *options) { o.grammar = g }
}

// WithLogger sets the logger used for soft warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProbeOptions forwards options to BuildAudioTokenMap.
func WithProbeOptions(opts ...ProbeOption) Option {
	return func(o *options) { o.probe = append(o.probe, opts...) }
}

// NewProcessor validates languages and probes tok for the audio-code markers.
// A probe failure is fatal: the returned error wraps ErrTokenizerProbe.
func NewProcessor(ctx context.Context, tok Tokenizer, languages []string, opts ...Option) (*Processor, error) {
	o := resolveOptions(opts)

	probe := append([]ProbeOption{WithProbeLogger(o.logger)}, o.probe...)

	tokens, err := BuildAudioTokenMap(ctx, tok, o.grammar, probe...)
	if err != nil {
		return nil, err
	}

	return newProcessor(tokens, languages, o)
}

// NewProcessorWithMap creates a Processor around an already built token map.
func NewProcessorWithMap(tokens *AudioTokenMap, languages []string, opts ...Option) (*Processor, error) {
	if tokens == nil {
		return nil, errors.New("audio token map is nil")
	}

	return newProcessor(tokens, languages, resolveOptions(opts))
}

func resolveOptions(opts []Option) options {
	o := options{
		grammar: GrammarV02,
		logger:  slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

func newProcessor(tokens *AudioTokenMap, languages []string, o options) (*Processor, error) {
	if len(languages) == 0 {
		return nil, errors.New("at least one language is required")
	}

	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		if strings.TrimSpace(lang) == "" {
			return nil, errors.New("language list contains an empty entry")
		}
		if _, dup := seen[lang]; dup {
			return nil, fmt.Errorf("duplicate language %q", lang)
		}
		seen[lang] = struct{}{}
	}

	return &Processor{
		grammar:   o.grammar,
		tokens:    tokens,
		languages: slices.Clone(languages),
		logger:    o.logger,
	}, nil
}

// Grammar returns the marker set in use.
func (p *Processor) Grammar() Grammar { return p.grammar }

// Languages returns a copy of the supported language list.
func (p *Processor) Languages() []string { return slices.Clone(p.languages) }

// TokenMap returns the audio token map.
func (p *Processor) TokenMap() *AudioTokenMap { return p.tokens }

// ProcessText normalizes text into words. The language must be in the
// processor's set and have normalization rules.
func (p *Processor) ProcessText(s, language string) ([]string, error) {
	if !slices.Contains(p.languages, language) {
		return nil, fmt.Errorf("%w: %q (supported: %s)", text.ErrUnsupportedLanguage, language, strings.Join(p.languages, ", "))
	}

	return text.Normalize(s, language)
}

// VoiceCloneSegment renders the reference words as timed code blocks, one
// word per line.
func (p *Processor) VoiceCloneSegment(speaker *SpeakerReference) string {
	if speaker == nil {
		return ""
	}

	var b strings.Builder

	for i, w := range speaker.Words {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(w.Word)
		b.WriteString(p.grammar.Timestamp(w.Duration))
		b.WriteString(p.grammar.CodeStart)
		for _, c := range w.Codes {
			b.WriteString(p.grammar.AudioCode(c))
		}
		b.WriteString(p.grammar.CodeEnd)
	}

	return b.String()
}

// CompletionPrompt builds the prompt the language model continues from.
//
// With a speaker, the reference transcript is placed before the text and its
// code blocks follow the audio start marker, without an audio end marker.
// A speaker recorded in another language is logged and used anyway.
func (p *Processor) CompletionPrompt(s, language string, speaker *SpeakerReference) (string, error) {
	words, err := p.ProcessText(s, language)
	if err != nil {
		return "", err
	}

	if speaker != nil {
		if speaker.Language != language {
			p.logger.Warn(
				"speaker language does not match text language",
				"speaker_language", speaker.Language,
				"text_language", language,
			)
		}

		refWords, err := p.ProcessText(speaker.Text, speaker.Language)
		if err != nil {
			return "", fmt.Errorf("speaker text: %w", err)
		}

		words = append(refWords, words...)
	}

	g := p.grammar

	var b strings.Builder
	b.WriteString(g.BeginOfTurn)
	b.WriteByte('\n')
	b.WriteString(g.TextStart)
	b.WriteString(strings.Join(words, g.TextSeparator))
	b.WriteString(g.TextEnd)
	b.WriteByte('\n')
	b.WriteString(g.AudioStart)
	b.WriteByte('\n')

	if speaker != nil {
		b.WriteString(p.VoiceCloneSegment(speaker))
	}

	return b.String(), nil
}

// ExtractAudioCodes returns the audio codes found in a generated token
// stream, in stream order. Ids that are not audio markers are skipped. The
// result is empty, never nil, when the stream holds no audio.
func (p *Processor) ExtractAudioCodes(tokens []int64) []int {
	codes := make([]int, 0, len(tokens))
	for _, id := range tokens {
		if code, ok := p.tokens.CodeFor(id); ok {
			codes = append(codes, code)
		}
	}

	return codes
}
