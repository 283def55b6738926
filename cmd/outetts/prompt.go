package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/prompt"
	"github.com/example/go-outetts/internal/tts"
)

func newPromptCmd() *cobra.Command {
	var speakerName string
	var speakerFile string
	var showIDs bool

	cmd := &cobra.Command{
		Use:   "prompt [text...]",
		Short: "Build the completion prompt a language model continues with audio tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, err := tts.FromConfig(cmd.Context(), cfg, false, slog.Default())
			if err != nil {
				return err
			}
			defer svc.Close()

			speaker, err := resolveSpeaker(svc, speakerName, speakerFile)
			if err != nil {
				return err
			}

			p, err := svc.PreparePrompt(input, speaker)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !showIDs {
				_, err = fmt.Fprint(out, p.Text)
				return err
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")

			return enc.Encode(struct {
				Prompt string  `json:"prompt"`
				IDs    []int64 `json:"ids"`
			}{p.Text, p.IDs})
		},
	}

	cmd.Flags().StringVar(&speakerName, "speaker", "", "Speaker name from the speaker manifest")
	cmd.Flags().StringVar(&speakerFile, "speaker-file", "", "Speaker profile file (yaml|json)")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Print the prompt and its token ids as JSON")

	return cmd
}

// resolveSpeaker loads the speaker named in the manifest or read from a
// profile file. Neither set means no speaker.
func resolveSpeaker(svc *tts.Service, name, file string) (*prompt.SpeakerReference, error) {
	switch {
	case name != "" && file != "":
		return nil, errors.New("--speaker and --speaker-file are mutually exclusive")
	case name != "":
		return svc.Speaker(name)
	case file != "":
		return tts.LoadSpeakerProfile(file)
	default:
		return nil, nil
	}
}
