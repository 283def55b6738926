// Package codec turns audio-code sequences into waveforms through an external
// WavTokenizer decoder.
package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-outetts/internal/audio"
	"github.com/example/go-outetts/internal/onnx"
	"github.com/example/go-outetts/internal/prompt"
)

var (
	ErrNoAudioCodes   = errors.New("no audio codes")
	ErrCodeOutOfRange = errors.New("audio code out of range")
)

// WaveformDecoder runs the codec graph: int64 codes [1, N] in, float samples
// out. *onnx.Decoder implements it.
type WaveformDecoder interface {
	Decode(ctx context.Context, codes *onnx.Tensor) (*onnx.Tensor, error)
}

// AudioCodec adapts a WaveformDecoder to plain code slices and waveforms.
// It adds no processing of its own: no resampling, gain or trimming.
type AudioCodec struct {
	decoder    WaveformDecoder
	sampleRate int
	maxCode    int
}

// New wraps decoder. Output is tagged with audio.SampleRate.
func New(decoder WaveformDecoder) *AudioCodec {
	return &AudioCodec{
		decoder:    decoder,
		sampleRate: audio.SampleRate,
		maxCode:    prompt.MaxAudioCode,
	}
}

// SampleRate returns the rate assigned to decoded waveforms.
func (c *AudioCodec) SampleRate() int { return c.sampleRate }

// Decode converts codes into a waveform.
func (c *AudioCodec) Decode(ctx context.Context, codes []int) (audio.Waveform, error) {
	if len(codes) == 0 {
		return audio.Waveform{}, ErrNoAudioCodes
	}

	ids := make([]int64, len(codes))
	for i, code := range codes {
		if code < 0 || code > c.maxCode {
			return audio.Waveform{}, fmt.Errorf("%w: codes[%d]=%d not in [0, %d]", ErrCodeOutOfRange, i, code, c.maxCode)
		}
		ids[i] = int64(code)
	}

	input, err := onnx.NewTensor(ids, []int64{1, int64(len(ids))})
	if err != nil {
		return audio.Waveform{}, err
	}

	out, err := c.decoder.Decode(ctx, input)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("decode audio codes: %w", err)
	}
	if out == nil {
		return audio.Waveform{}, errors.New("decode audio codes: decoder returned no tensor")
	}

	channels, err := channelCount(out.Shape())
	if err != nil {
		return audio.Waveform{}, err
	}

	samples, err := out.Float32s()
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("decode audio codes: %w", err)
	}

	if channels > 1 {
		samples = interleave(samples, channels)
	}

	return audio.Waveform{Samples: samples, SampleRate: c.sampleRate, Channels: channels}, nil
}

// channelCount reads the channel layout of a decoder output. [N], [1, N] and
// [1, 1, N] are mono; [1, C, N] has C channels.
func channelCount(shape []int64) (int, error) {
	switch {
	case len(shape) == 1:
		return 1, nil
	case len(shape) == 2 && shape[0] == 1:
		return 1, nil
	case len(shape) == 3 && shape[0] == 1 && shape[1] >= 1:
		return int(shape[1]), nil
	default:
		return 0, fmt.Errorf("unexpected waveform shape %v", shape)
	}
}

// interleave converts planar [C][N] samples to frame order.
func interleave(planar []float32, channels int) []float32 {
	frames := len(planar) / channels
	out := make([]float32, len(planar))

	for ch := range channels {
		for i := range frames {
			out[i*channels+ch] = planar[ch*frames+i]
		}
	}

	return out
}
