package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/config"
	"github.com/example/go-outetts/internal/doctor"
	"github.com/example/go-outetts/internal/onnx"
	"github.com/example/go-outetts/internal/prompt"
	"github.com/example/go-outetts/internal/tts"
)

func newDoctorCmd() *cobra.Command {
	var skipRuntime bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "model: %s (%s)\n", cfg.Model.Version, cfg.Model.Language)

			speakerFiles, manifestErr := collectSpeakerFiles(cfg.Paths.SpeakerManifest)
			dcfg := doctorConfig(cmd.Context(), cfg)
			dcfg.SpeakerFiles = speakerFiles
			dcfg.SkipRuntime = skipRuntime

			result := doctor.Run(dcfg, out)
			if manifestErr != nil {
				result.AddFailure(fmt.Sprintf("speaker manifest: %v", manifestErr))
				_, _ = fmt.Fprintf(out, "%s speaker manifest: %v\n", doctor.FailMark, manifestErr)
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRuntime, "skip-runtime", false, "Skip ONNX Runtime and decoder checks")

	return cmd
}

// doctorConfig wires the checks to the configured tokenizer, runtime and
// decoder.
func doctorConfig(ctx context.Context, cfg config.Config) doctor.Config {
	return doctor.Config{
		TokenizerJSON:  cfg.Paths.TokenizerJSON,
		TokenizerModel: cfg.Paths.TokenizerModel,
		DecoderModel:   cfg.Paths.DecoderModel,
		ORTAPIVersion:  cfg.Runtime.ORTAPIVersion,
		ORTVersion: func() (string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime.ORTLibraryPath)
			if err != nil {
				return "", err
			}
			return info.Version, nil
		},
		ProbeTokenizer: func() (string, error) {
			return probeTokenizer(ctx, cfg)
		},
		WarmupDecoder: func() error {
			dec, err := tts.OpenDecoder(cfg)
			if err != nil {
				return err
			}
			defer dec.Close()

			return dec.Warmup(ctx)
		},
	}
}

// probeTokenizer builds the audio token map the prompt processor would use.
func probeTokenizer(ctx context.Context, cfg config.Config) (string, error) {
	tok, err := tts.LoadTokenizer(cfg.Paths)
	if err != nil {
		return "", err
	}

	var opts []prompt.ProbeOption
	if cfg.Runtime.ProbeWorkers > 0 {
		opts = append(opts, prompt.WithProbeWorkers(cfg.Runtime.ProbeWorkers))
	}

	m, err := prompt.BuildAudioTokenMap(ctx, tok, prompt.GrammarV02, opts...)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d audio codes, vocabulary %d", m.Len(), tok.VocabSize()), nil
}

// collectSpeakerFiles returns the absolute profile paths listed in the
// speaker manifest. Paths are resolved relative to the manifest, so the
// checks do not depend on the working directory.
func collectSpeakerFiles(manifest string) ([]string, error) {
	if manifest == "" {
		return nil, nil
	}

	mgr, err := tts.NewSpeakerManager(manifest)
	if err != nil {
		return nil, err
	}

	speakers := mgr.List("")
	paths := make([]string, 0, len(speakers))
	for _, s := range speakers {
		resolved, err := mgr.ResolvePath(s.Language, s.Name)
		if err != nil {
			return nil, err
		}
		if abs, err := filepath.Abs(resolved); err == nil {
			resolved = abs
		}
		paths = append(paths, resolved)
	}

	return paths, nil
}
