package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/tts"
)

func newExtractCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the audio codes contained in a generated token stream",
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

			svc, err := tts.FromConfig(cmd.Context(), cfg, false, slog.Default())
			if err != nil {
				return err
			}
			defer svc.Close()

			codes, err := svc.Codes(tokens)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatCodes(codes))

			return err
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "Token stream file: JSON array or whitespace-separated ids ('-' for stdin)")

	return cmd
}

func formatCodes(codes []int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}

	return strings.Join(parts, " ")
}
