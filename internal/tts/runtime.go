package tts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/go-outetts/internal/audio"
	"github.com/example/go-outetts/internal/codec"
	"github.com/example/go-outetts/internal/config"
	"github.com/example/go-outetts/internal/onnx"
	"github.com/example/go-outetts/internal/prompt"
	"github.com/example/go-outetts/internal/tokenizer"
)

// LoadTokenizer opens tokenizer.json. When a SentencePiece model is
// configured it encodes plain text for tokenizer.json models this package
// cannot run itself.
func LoadTokenizer(paths config.PathsConfig) (*tokenizer.HFTokenizer, error) {
	var opts []tokenizer.Option

	if paths.TokenizerModel != "" {
		sp, err := tokenizer.NewSentencePieceTokenizer(paths.TokenizerModel)
		if err != nil {
			return nil, fmt.Errorf("load fallback tokenizer: %w", err)
		}
		opts = append(opts, tokenizer.WithFallback(sp))
	}

	return tokenizer.LoadHF(paths.TokenizerJSON, opts...)
}

// OpenDecoder loads the WavTokenizer decoder graph through ONNX Runtime.
func OpenDecoder(cfg config.Config) (*onnx.Decoder, error) {
	info, err := onnx.DetectRuntime(cfg.Runtime.ORTLibraryPath)
	if err != nil {
		return nil, err
	}

	return onnx.NewDecoder(cfg.Paths.DecoderModel, onnx.RunnerConfig{
		LibraryPath: info.LibraryPath,
		APIVersion:  cfg.Runtime.ORTAPIVersion,
	})
}

// FromConfig builds a Service from resolved configuration. The decoder is
// only loaded when withAudio is set, so prompt-only commands work without
// ONNX Runtime.
func FromConfig(ctx context.Context, cfg config.Config, withAudio bool, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	format, err := audio.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	tok, err := LoadTokenizer(cfg.Paths)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithLanguage(cfg.Model.Language),
		WithMaxSeqLength(cfg.Model.MaxSeqLength),
		WithFormat(format),
		WithLogger(logger),
	}
	if cfg.Runtime.ProbeWorkers > 0 {
		opts = append(opts, WithProbeOptions(prompt.WithProbeWorkers(cfg.Runtime.ProbeWorkers)))
	}

	if cfg.Paths.SpeakerManifest != "" {
		speakers, err := NewSpeakerManager(cfg.Paths.SpeakerManifest)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSpeakers(speakers))
	}

	var dec *onnx.Decoder
	if withAudio {
		dec, err = OpenDecoder(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDecoder(codec.New(dec)), withCloser(dec.Close))
	}

	svc, err := NewService(ctx, cfg.Model.Version, tok, opts...)
	if err != nil {
		if dec != nil {
			dec.Close()
		}
		return nil, err
	}

	return svc, nil
}
