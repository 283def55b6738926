package testutil

import (
	"encoding/binary"
	"errors"
	"testing"
)

// AssertValidWAV checks that data is a mono 24000 Hz WAV. Float output must
// be 32-bit IEEE float; PCM output must be 16-bit. The data chunk must hold at
// least one sample.
func AssertValidWAV(tb testing.TB, data []byte) {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		tb.Fatalf("WAV: missing RIFF header (got %q)", string(data[0:4]))
	}

	if string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing WAVE marker (got %q)", string(data[8:12]))
	}

	if string(data[12:16]) != "fmt " {
		tb.Fatalf("WAV: missing fmt chunk (got %q)", string(data[12:16]))
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	if channels != 1 {
		tb.Fatalf("WAV: expected mono (1 channel), got %d", channels)
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate != 24000 {
		tb.Fatalf("WAV: expected sample rate 24000, got %d", sampleRate)
	}

	bytesPerSample, err := sampleWidth(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if dataSize/bytesPerSample == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}
}

// AssertWAVDurationApprox asserts that the WAV audio duration falls within
// [minSec, maxSec] at 24000 Hz.
func AssertWAVDurationApprox(tb testing.TB, data []byte, minSec, maxSec float64) {
	tb.Helper()

	bytesPerSample, err := sampleWidth(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	const sampleRate = 24000
	durationSec := float64(dataSize/bytesPerSample) / float64(sampleRate)
	if durationSec < minSec || durationSec > maxSec {
		tb.Fatalf("WAV duration %.3fs out of expected range [%.3fs, %.3fs]", durationSec, minSec, maxSec)
	}
}

// sampleWidth returns the bytes per mono sample for the two layouts the
// renderer writes.
func sampleWidth(data []byte) (uint32, error) {
	if len(data) < 36 {
		return 0, errors.New("fmt chunk truncated")
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	bits := binary.LittleEndian.Uint16(data[34:36])

	switch {
	case format == 3 && bits == 32:
		return 4, nil
	case format == 1 && bits == 16:
		return 2, nil
	default:
		return 0, errors.New("expected 32-bit float or 16-bit PCM samples")
	}
}

// findDataChunkSize walks the WAV chunk list to locate the "data" sub-chunk
// and returns its size in bytes.
func findDataChunkSize(data []byte) (uint32, error) {
	// Start after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])

		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		if id == "data" {
			return size, nil
		}

		offset += 8 + int(size)
		// Pad to even boundary.
		if size%2 != 0 {
			offset++
		}
	}

	return 0, errors.New("data chunk not found in WAV")
}
