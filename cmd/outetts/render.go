package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/audio"
	"github.com/example/go-outetts/internal/tts"
)

func newRenderCmd() *cobra.Command {
	var in string
	var out string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Decode the audio codes of a generated token stream to WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			r, err := openInput(in, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer r.Close()

			tokens, err := readTokenStream(r)
			if err != nil {
				return err
			}

			svc, err := tts.FromConfig(cmd.Context(), cfg, true, slog.Default())
			if err != nil {
				return err
			}
			defer svc.Close()

			wav, err := svc.Render(cmd.Context(), tokens)
			if err != nil {
				return err
			}

			path := outputPath(out, cfg.Output.Dir)
			if err := audio.WriteFile(path, wav); err != nil {
				return err
			}

			slog.Info("wrote audio", "path", path, "bytes", len(wav), "format", cfg.Output.Format)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)

			return err
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "Token stream file: JSON array or whitespace-separated ids ('-' for stdin)")
	cmd.Flags().StringVar(&out, "out", "", "Output WAV path (default <out-dir>/output_<uuid>.wav)")

	return cmd
}

// outputPath returns out, or a fresh output_<uuid>.wav name inside dir.
func outputPath(out, dir string) string {
	if out != "" {
		return out
	}
	if dir == "" {
		dir = "."
	}

	return filepath.Join(dir, "output_"+uuid.NewString()+".wav")
}
