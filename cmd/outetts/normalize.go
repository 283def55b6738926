package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/text"
)

func newNormalizeCmd() *cobra.Command {
	var lines bool

	cmd := &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Print the normalized words of a text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			words, err := text.Normalize(input, cfg.Model.Language)
			if err != nil {
				return err
			}

			sep := " "
			if lines {
				sep = "\n"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(words, sep))

			return err
		},
	}

	cmd.Flags().BoolVar(&lines, "lines", false, "Print one word per line")

	return cmd
}
