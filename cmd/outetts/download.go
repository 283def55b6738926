package main

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/go-outetts/internal/model"
)

func newDownloadCmd() *cobra.Command {
	var hfToken string
	var hubURL string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the tokenizer and decoder files of the configured model version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if hfToken == "" {
				hfToken = os.Getenv("HF_TOKEN")
			}

			entry, err := model.Lookup(cfg.Model.Version)
			if err != nil {
				return err
			}

			manifests, err := entry.Manifests()
			if err != nil {
				return err
			}

			for _, m := range manifests {
				outDir := repoDir(cfg.Paths.ModelsDir, m.Repo)
				err := model.Fetch(cmd.Context(), model.FetchOptions{
					Repo:    m.Repo,
					OutDir:  outDir,
					HFToken: hfToken,
					BaseURL: hubURL,
					Logger:  slog.Default(),
				})
				if err != nil {
					return fmt.Errorf("model download failed: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", m.Repo, outDir)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")
	cmd.Flags().StringVar(&hubURL, "hub-url", model.DefaultHubURL, "Hugging Face hub base URL")

	return cmd
}

// repoDir keeps each repository in its own directory so their lock files
// do not collide.
func repoDir(modelsDir, repo string) string {
	return filepath.Join(modelsDir, path.Base(repo))
}
