package model

import "fmt"

// Manifest lists the files fetched from one Hugging Face repository.
type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

// ModelFile is one pinned file. An empty SHA256 is resolved from the hub
// metadata on first download and then kept in the local lock file.
type ModelFile struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

// PinnedManifest returns the files needed from repo.
func PinnedManifest(repo string) (Manifest, error) {
	switch repo {
	case "onnx-community/OuteTTS-0.2-500M":
		return Manifest{
			Repo: repo,
			Files: []ModelFile{
				{Filename: "tokenizer.json", Revision: "main"},
				{Filename: "tokenizer_config.json", Revision: "main"},
			},
		}, nil
	case "onnx-community/WavTokenizer-large-speech-75token_decode":
		return Manifest{
			Repo: repo,
			Files: []ModelFile{
				{Filename: "onnx/model.onnx", Revision: "main"},
			},
		}, nil
	default:
		return Manifest{}, fmt.Errorf("no pinned manifest for repo %q", repo)
	}
}

// Manifests returns the pinned manifests for every repository a model
// version depends on.
func (c Config) Manifests() ([]Manifest, error) {
	out := make([]Manifest, 0, 2)

	for _, repo := range []string{c.TokenizerRepo, c.DecoderRepo} {
		m, err := PinnedManifest(repo)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, nil
}
