// Package model describes the supported OuteTTS model versions and the
// pinned assets each one needs.
package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/example/go-outetts/internal/text"
)

var (
	// ErrUnsupportedVersion is returned by Lookup for unknown versions.
	ErrUnsupportedVersion = errors.New("unsupported model version")
	// ErrSequenceTooLong is returned when a requested or actual sequence
	// length exceeds what the model supports.
	ErrSequenceTooLong = errors.New("sequence length exceeds model maximum")
)

// DefaultVersion is the model version used when none is configured.
const DefaultVersion = "0.2"

// Config is the static description of one model version.
type Config struct {
	Version       string
	TokenizerRepo string
	DecoderRepo   string
	Sizes         []string
	Links         []string
	Languages     []string
	MaxSeqLength  int
}

var registry = map[string]Config{
	"0.2": {
		Version:       "0.2",
		TokenizerRepo: "onnx-community/OuteTTS-0.2-500M",
		DecoderRepo:   "onnx-community/WavTokenizer-large-speech-75token_decode",
		Sizes:         []string{"500M"},
		Links:         []string{"https://huggingface.co/onnx-community/OuteTTS-0.2-500M"},
		Languages:     []string{"en", "ja", "ko", "zh"},
		MaxSeqLength:  4096,
	},
}

// Lookup returns the configuration of a model version.
func Lookup(version string) (Config, error) {
	cfg, ok := registry[version]
	if !ok {
		return Config{}, fmt.Errorf("%w %q; supported versions are: %v", ErrUnsupportedVersion, version, Versions())
	}

	cfg.Sizes = slices.Clone(cfg.Sizes)
	cfg.Links = slices.Clone(cfg.Links)
	cfg.Languages = slices.Clone(cfg.Languages)

	return cfg, nil
}

// Versions lists the registered versions in sorted order.
func Versions() []string {
	return slices.Sorted(maps.Keys(registry))
}

// SupportsLanguage reports whether language is one of the version's languages.
func (c Config) SupportsLanguage(language string) bool {
	return slices.Contains(c.Languages, language)
}

// CheckLanguage fails with text.ErrUnsupportedLanguage when the version does
// not support language.
func (c Config) CheckLanguage(language string) error {
	if !c.SupportsLanguage(language) {
		return fmt.Errorf("%w: %q is not supported by model version %s (supported: %v)",
			text.ErrUnsupportedLanguage, language, c.Version, c.Languages)
	}

	return nil
}

// CheckMaxLength validates a requested maximum sequence length against the
// model limit. Zero means the caller did not set one.
func CheckMaxLength(requested, modelMax int) error {
	if requested <= 0 {
		return fmt.Errorf("max sequence length must be specified, got %d", requested)
	}
	if requested > modelMax {
		return fmt.Errorf("%w: requested %d, model supports %d", ErrSequenceTooLong, requested, modelMax)
	}

	return nil
}
