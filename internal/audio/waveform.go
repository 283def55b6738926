// Package audio holds decoded waveforms and their WAV containers.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SampleRate is the output rate of the speech codec, in Hz.
const SampleRate = 24000

// ErrUnsupportedChannelLayout is returned when a waveform is not mono.
var ErrUnsupportedChannelLayout = errors.New("unsupported channel layout")

// Waveform is a block of float samples. Multi-channel samples are interleaved.
type Waveform struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of samples per channel.
func (w Waveform) Frames() int {
	if w.Channels < 1 {
		return 0
	}

	return len(w.Samples) / w.Channels
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate < 1 {
		return 0
	}

	return time.Duration(w.Frames()) * time.Second / time.Duration(w.SampleRate)
}

func (w Waveform) checkMono() error {
	if w.Channels != 1 {
		return fmt.Errorf("%w: %d channels, want 1", ErrUnsupportedChannelLayout, w.Channels)
	}
	// The byte rate of a 32-bit stream must still fit the header's uint32.
	if w.SampleRate < 1 || w.SampleRate > math.MaxUint32/float32Bytes {
		return fmt.Errorf("invalid sample rate: %d", w.SampleRate)
	}

	return nil
}
