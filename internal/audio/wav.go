package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	wavHeaderSize   = 44
	formatPCM       = 1
	formatIEEEFloat = 3
	float32Bytes    = 4
)

// ErrFormatMismatch is returned when a WAV does not have the expected layout.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// EncodeWAV writes a mono waveform as a 32-bit IEEE float WAV with the
// canonical 44-byte header. The buffer is fully written before it is
// returned.
func EncodeWAV(w Waveform) ([]byte, error) {
	if err := w.checkMono(); err != nil {
		return nil, err
	}

	const maxSamples = (math.MaxUint32 - (wavHeaderSize - 8)) / float32Bytes
	if len(w.Samples) > maxSamples {
		return nil, fmt.Errorf("waveform too long for WAV: %d samples", len(w.Samples))
	}

	dataSize := len(w.Samples) * float32Bytes
	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatIEEEFloat)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(w.SampleRate*float32Bytes))
	binary.LittleEndian.PutUint16(buf[32:34], float32Bytes)
	binary.LittleEndian.PutUint16(buf[34:36], 32)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range w.Samples {
		off := wavHeaderSize + i*float32Bytes
		binary.LittleEndian.PutUint32(buf[off:off+float32Bytes], math.Float32bits(s))
	}

	return buf, nil
}

// DecodeWAV parses the canonical float32 layout written by EncodeWAV.
func DecodeWAV(data []byte) (Waveform, error) {
	if len(data) < wavHeaderSize {
		return Waveform{}, fmt.Errorf("WAV too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Waveform{}, errors.New("invalid WAV file")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return Waveform{}, fmt.Errorf("%w: not a canonical 44-byte header", ErrFormatMismatch)
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bitDepth := binary.LittleEndian.Uint16(data[34:36])
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))

	if format != formatIEEEFloat || bitDepth != 32 {
		return Waveform{}, fmt.Errorf("%w: format %d with %d bits, want IEEE float 32", ErrFormatMismatch, format, bitDepth)
	}
	if dataSize%float32Bytes != 0 || wavHeaderSize+dataSize > len(data) {
		return Waveform{}, fmt.Errorf("%w: data chunk of %d bytes in a %d byte file", ErrFormatMismatch, dataSize, len(data))
	}

	samples := make([]float32, dataSize/float32Bytes)
	for i := range samples {
		off := wavHeaderSize + i*float32Bytes
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+float32Bytes]))
	}

	return Waveform{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}
