// Package tts wires the prompt processor, tokenizer and audio codec into the
// OuteTTS prompt-to-WAV pipeline.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/go-outetts/internal/audio"
	"github.com/example/go-outetts/internal/codec"
	"github.com/example/go-outetts/internal/model"
	"github.com/example/go-outetts/internal/prompt"
)

var (
	// ErrNoAudio is returned when a generated token stream holds no audio codes.
	ErrNoAudio = errors.New("no audio codes in token stream")
	// ErrNoDecoder is returned by audio operations on a service built without
	// a waveform decoder.
	ErrNoDecoder = errors.New("service has no waveform decoder")
)

// Decoder turns audio codes into a waveform. *codec.AudioCodec implements it.
type Decoder interface {
	Decode(ctx context.Context, codes []int) (audio.Waveform, error)
}

// Prompt is a completion prompt and its token ids.
type Prompt struct {
	Text string
	IDs  []int64
}

type options struct {
	language     string
	maxSeqLength int
	format       audio.Format
	decoder      Decoder
	speakers     *SpeakerManager
	probe        []prompt.ProbeOption
	logger       *slog.Logger
	closers      []func()
}

// Option configures NewService.
type Option func(*options)

// WithLanguage sets the prompt language. Defaults to "en".
func WithLanguage(lang string) Option { return func(o *options) { o.language = lang } }

// WithMaxSeqLength sets the token budget shared by the prompt and the
// generated continuation. Defaults to the model maximum.
func WithMaxSeqLength(n int) Option { return func(o *options) { o.maxSeqLength = n } }

// WithFormat sets the WAV sample format produced by Render.
func WithFormat(f audio.Format) Option { return func(o *options) { o.format = f } }

// WithDecoder enables Audio and Render.
func WithDecoder(d Decoder) Option { return func(o *options) { o.decoder = d } }

// WithSpeakers enables Speaker lookups.
func WithSpeakers(m *SpeakerManager) Option { return func(o *options) { o.speakers = m } }

// WithProbeOptions forwards options to the audio token map probe.
func WithProbeOptions(opts ...prompt.ProbeOption) Option {
	return func(o *options) { o.probe = append(o.probe, opts...) }
}

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// withCloser registers cleanup run by Service.Close.
func withCloser(fn func()) Option { return func(o *options) { o.closers = append(o.closers, fn) } }

// Service runs the pipeline for one model version and language.
type Service struct {
	model        model.Config
	tokenizer    prompt.Tokenizer
	processor    *prompt.Processor
	language     string
	maxSeqLength int
	format       audio.Format
	decoder      Decoder
	speakers     *SpeakerManager
	logger       *slog.Logger
	closers      []func()
}

// NewService checks the language and sequence length against the model
// registry and builds the prompt processor, probing tok for every audio
// code marker.
func NewService(ctx context.Context, version string, tok prompt.Tokenizer, opts ...Option) (*Service, error) {
	o := options{
		language: "en",
		format:   audio.FormatFloat32,
		logger:   slog.Default(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	cfg, err := model.Lookup(version)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckLanguage(o.language); err != nil {
		return nil, err
	}
	if o.maxSeqLength == 0 {
		o.maxSeqLength = cfg.MaxSeqLength
	}
	if err := model.CheckMaxLength(o.maxSeqLength, cfg.MaxSeqLength); err != nil {
		return nil, err
	}

	logger := o.logger.With("model_version", cfg.Version, "language", o.language)

	probe := append([]prompt.ProbeOption{prompt.WithProbeLogger(logger)}, o.probe...)
	processor, err := prompt.NewProcessor(ctx, tok, cfg.Languages,
		prompt.WithLogger(logger),
		prompt.WithProbeOptions(probe...),
	)
	if err != nil {
		return nil, fmt.Errorf("build prompt processor: %w", err)
	}

	logger.Debug("tts service ready", "max_seq_length", o.maxSeqLength, "audio", o.decoder != nil)

	return &Service{
		model:        cfg,
		tokenizer:    tok,
		processor:    processor,
		language:     o.language,
		maxSeqLength: o.maxSeqLength,
		format:       o.format,
		decoder:      o.decoder,
		speakers:     o.speakers,
		logger:       logger,
		closers:      o.closers,
	}, nil
}

// Model returns the registry entry of the service's model version.
func (s *Service) Model() model.Config { return s.model }

// Processor returns the prompt processor.
func (s *Service) Processor() *prompt.Processor { return s.processor }

// Language returns the prompt language.
func (s *Service) Language() string { return s.language }

// PreparePrompt builds the completion prompt for text and encodes it. The
// prompt must leave room for at least one generated token.
func (s *Service) PreparePrompt(text string, speaker *prompt.SpeakerReference) (Prompt, error) {
	p, err := s.processor.CompletionPrompt(text, s.language, speaker)
	if err != nil {
		return Prompt{}, err
	}

	ids, err := s.tokenizer.Encode(p)
	if err != nil {
		return Prompt{}, fmt.Errorf("encode prompt: %w", err)
	}

	if len(ids) >= s.maxSeqLength {
		return Prompt{}, fmt.Errorf("%w: prompt is %d tokens, limit is %d", model.ErrSequenceTooLong, len(ids), s.maxSeqLength)
	}

	s.logger.Debug("prepared prompt", "tokens", len(ids), "speaker", speaker != nil)

	return Prompt{Text: p, IDs: ids}, nil
}

// Codes extracts the audio codes of a generated token stream.
func (s *Service) Codes(tokens []int64) ([]int, error) {
	codes := s.processor.ExtractAudioCodes(tokens)
	if len(codes) == 0 {
		s.logger.Warn("no audio codes found in token stream", "tokens", len(tokens))
		return nil, ErrNoAudio
	}

	return codes, nil
}

// Audio extracts the audio codes of a generated token stream and decodes
// them into a waveform.
func (s *Service) Audio(ctx context.Context, tokens []int64) (audio.Waveform, error) {
	if s.decoder == nil {
		return audio.Waveform{}, ErrNoDecoder
	}

	codes, err := s.Codes(tokens)
	if err != nil {
		return audio.Waveform{}, err
	}

	w, err := s.decoder.Decode(ctx, codes)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("decode audio codes: %w", err)
	}

	s.logger.Debug("decoded audio", "codes", len(codes), "samples", len(w.Samples), "duration", w.Duration())

	return w, nil
}

// Render decodes a generated token stream into WAV bytes in the configured
// format.
func (s *Service) Render(ctx context.Context, tokens []int64) ([]byte, error) {
	w, err := s.Audio(ctx, tokens)
	if err != nil {
		return nil, err
	}

	return audio.Encode(w, s.format)
}

// Speaker loads a named speaker for the service language.
func (s *Service) Speaker(name string) (*prompt.SpeakerReference, error) {
	if s.speakers == nil {
		return nil, errors.New("no speaker manifest configured")
	}

	return s.speakers.Load(s.language, name)
}

// Speakers returns the speaker manager, or nil if none is configured.
func (s *Service) Speakers() *SpeakerManager { return s.speakers }

// Close releases the decoder and any other resources the service owns.
func (s *Service) Close() {
	for _, fn := range s.closers {
		fn()
	}
	s.closers = nil
}

var _ Decoder = (*codec.AudioCodec)(nil)
