package prompt

import (
	"errors"
	"fmt"
	"math"
)

// MaxAudioCode is the largest audio code the 0.2 codec accepts.
const MaxAudioCode = DefaultCodeCount - 1

// SpeakerReference is a transcribed reference utterance used for voice cloning.
type SpeakerReference struct {
	Language string       `json:"language" yaml:"language"`
	Text     string       `json:"text" yaml:"text"`
	Words    []VoicedWord `json:"words" yaml:"words"`
}

// VoicedWord is one word of a reference utterance with its duration in
// seconds and the audio codes spoken for it.
type VoicedWord struct {
	Word     string  `json:"word" yaml:"word"`
	Duration float64 `json:"duration" yaml:"duration"`
	Codes    []int   `json:"codes" yaml:"codes"`
}

// Validate checks the invariants of a reference loaded from outside.
func (s *SpeakerReference) Validate() error {
	if s.Language == "" {
		return errors.New("speaker language is empty")
	}
	if len(s.Words) == 0 {
		return errors.New("speaker has no words")
	}

	for i, w := range s.Words {
		if w.Word == "" {
			return fmt.Errorf("speaker word %d is empty", i)
		}
		if math.IsNaN(w.Duration) || math.IsInf(w.Duration, 0) || w.Duration < 0 {
			return fmt.Errorf("speaker word %d (%q): invalid duration %v", i, w.Word, w.Duration)
		}
		for j, c := range w.Codes {
			if c < 0 || c > MaxAudioCode {
				return fmt.Errorf("speaker word %d (%q): code %d out of range: %d", i, w.Word, j, c)
			}
		}
	}

	return nil
}
