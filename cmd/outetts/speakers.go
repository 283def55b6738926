package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/tts"
)

func newSpeakersCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "speakers",
		Short: "List the speakers of the speaker manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.SpeakerManifest == "" {
				return errors.New("no speaker manifest configured (set --speaker-manifest)")
			}

			mgr, err := tts.NewSpeakerManager(cfg.Paths.SpeakerManifest)
			if err != nil {
				return err
			}

			language := cfg.Model.Language
			if all {
				language = ""
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LANGUAGE\tNAME\tPROFILE")
			for _, s := range mgr.List(language) {
				path, err := mgr.ResolvePath(s.Language, s.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Language, s.Name, path)
			}

			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List speakers of every language")

	return cmd
}
