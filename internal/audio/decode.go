package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
)

// DecodePCM16 decodes a mono 16-bit PCM WAV into a waveform.
func DecodePCM16(data []byte) (Waveform, error) {
	if len(data) == 0 {
		return Waveform{}, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Waveform{}, errors.New("invalid WAV file")
	}

	if dec.NumChans != 1 {
		return Waveform{}, fmt.Errorf("%w: %d channels, want 1", ErrUnsupportedChannelLayout, dec.NumChans)
	}
	if dec.BitDepth != pcm16BitDepth {
		return Waveform{}, fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, dec.BitDepth, pcm16BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return Waveform{Samples: buf.Data, SampleRate: int(dec.SampleRate), Channels: 1}, nil
}
