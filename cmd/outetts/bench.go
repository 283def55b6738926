package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/audio"
	"github.com/example/go-outetts/internal/bench"
	"github.com/example/go-outetts/internal/tts"
)

func newBenchCmd() *cobra.Command {
	var (
		in           string
		runs         int
		report       string
		rtfThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark decoding a generated token stream to WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return errors.New("--runs must be at least 1")
			}
			if report != "table" && report != "json" {
				return errors.New("--report must be 'table' or 'json'")
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

			format, err := audio.ParseFormat(cfg.Output.Format)
			if err != nil {
				return err
			}

			svc, err := tts.FromConfig(cmd.Context(), cfg, true, slog.Default())
			if err != nil {
				return err
			}
			defer svc.Close()

			results, err := bench.Run(cmd.Context(), runs, bench.Pipeline{
				Decode: func(ctx context.Context) (audio.Waveform, error) { return svc.Audio(ctx, tokens) },
				Encode: func(w audio.Waveform) ([]byte, error) { return audio.Encode(w, format) },
			})
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(results)
			out := cmd.OutOrStdout()
			switch report {
			case "json":
				if err := bench.FormatJSON(results, stats, out); err != nil {
					return err
				}
			default:
				bench.FormatTable(results, stats, out)
			}

			meanRTF := bench.MeanRTF(results)
			if report == "table" {
				_, _ = fmt.Fprintf(out, "mean RTF: %.3f\n", meanRTF)
			}

			return bench.CheckRTFThreshold(meanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "Token stream file: JSON array or whitespace-separated ids ('-' for stdin)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of timed runs; the first is reported as cold")
	cmd.Flags().StringVar(&report, "report", "table", "Report format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Fail when the mean realtime factor exceeds this value (0 disables)")

	return cmd
}
