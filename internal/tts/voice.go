package tts

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/go-outetts/internal/prompt"
)

// ErrUnknownSpeaker is returned when a manifest has no entry for a
// language and name pair.
var ErrUnknownSpeaker = errors.New("unknown speaker")

// Speaker is one manifest entry. Path is relative to the manifest file
// unless absolute.
type Speaker struct {
	Language string `json:"language" yaml:"language"`
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path" yaml:"path"`
}

type speakerManifest struct {
	Speakers []Speaker `json:"speakers" yaml:"speakers"`
}

type speakerKey struct {
	language, name string
}

// SpeakerManager indexes the speaker profiles listed in a manifest.
type SpeakerManager struct {
	baseDir  string
	speakers []Speaker
	byKey    map[speakerKey]Speaker
}

func NewSpeakerManager(manifestPath string) (*SpeakerManager, error) {
	if manifestPath == "" {
		return nil, errors.New("speaker manifest path is required")
	}

	var manifest speakerManifest
	if err := decodeFile(manifestPath, &manifest); err != nil {
		return nil, fmt.Errorf("speaker manifest: %w", err)
	}

	mgr := &SpeakerManager{
		baseDir: filepath.Dir(manifestPath),
		byKey:   make(map[speakerKey]Speaker, len(manifest.Speakers)),
	}

	for _, s := range manifest.Speakers {
		if s.Language == "" || s.Name == "" {
			return nil, fmt.Errorf("speaker manifest entry %+v needs a language and a name", s)
		}
		if s.Path == "" {
			return nil, fmt.Errorf("speaker %s/%s has empty path", s.Language, s.Name)
		}

		key := speakerKey{s.Language, s.Name}
		if _, exists := mgr.byKey[key]; exists {
			return nil, fmt.Errorf("duplicate speaker %s/%s", s.Language, s.Name)
		}

		mgr.byKey[key] = s
		mgr.speakers = append(mgr.speakers, s)
	}

	slices.SortFunc(mgr.speakers, func(a, b Speaker) int {
		return cmp.Or(cmp.Compare(a.Language, b.Language), cmp.Compare(a.Name, b.Name))
	})

	return mgr, nil
}

// List returns the speakers ordered by language, then name. A non-empty
// language restricts the list to that language.
func (m *SpeakerManager) List(language string) []Speaker {
	out := make([]Speaker, 0, len(m.speakers))
	for _, s := range m.speakers {
		if language == "" || s.Language == language {
			out = append(out, s)
		}
	}

	return out
}

// ResolvePath returns the profile file of a speaker.
func (m *SpeakerManager) ResolvePath(language, name string) (string, error) {
	s, ok := m.byKey[speakerKey{language, name}]
	if !ok {
		return "", fmt.Errorf("%w %q for language %q", ErrUnknownSpeaker, name, language)
	}

	resolved := s.Path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(m.baseDir, resolved)
	}

	return filepath.Clean(resolved), nil
}

// Load reads and validates the profile of a speaker.
func (m *SpeakerManager) Load(language, name string) (*prompt.SpeakerReference, error) {
	path, err := m.ResolvePath(language, name)
	if err != nil {
		return nil, err
	}

	ref, err := LoadSpeakerProfile(path)
	if err != nil {
		return nil, fmt.Errorf("speaker %s/%s: %w", language, name, err)
	}

	return ref, nil
}

// LoadSpeakerProfile reads a speaker reference from a JSON or YAML file.
func LoadSpeakerProfile(path string) (*prompt.SpeakerReference, error) {
	var ref prompt.SpeakerReference
	if err := decodeFile(path, &ref); err != nil {
		return nil, err
	}

	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("invalid speaker profile %s: %w", path, err)
	}

	return &ref, nil
}

// decodeFile picks the decoder by extension. Anything that is not .json is
// read as YAML.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
