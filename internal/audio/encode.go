package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

const pcm16BitDepth = 16

// EncodePCM16 encodes a mono waveform as a 16-bit PCM WAV.
func EncodePCM16(w Waveform) ([]byte, error) {
	if err := w.checkMono(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	// wav.NewEncoder requires an io.WriteSeeker; bytes.Buffer is not one.
	sw := &seekBuffer{buf: &buf}

	enc := wav.NewEncoder(sw, w.SampleRate, pcm16BitDepth, 1, formatPCM)

	pcmBuf := &goaudio.Float32Buffer{
		Data:           w.Samples,
		Format:         &goaudio.Format{SampleRate: w.SampleRate, NumChannels: 1},
		SourceBitDepth: pcm16BitDepth,
	}

	if err := enc.Write(pcmBuf); err != nil {
		return nil, fmt.Errorf("writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	return buf.Bytes(), nil
}

// seekBuffer wraps a bytes.Buffer to satisfy io.WriteSeeker.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}

	// Overwrite in place, growing the buffer for any remainder.
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		s.buf.Write(p[n:])
	}
	s.pos += len(p)

	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = int(offset)
	case io.SeekCurrent:
		newPos = s.pos + int(offset)
	case io.SeekEnd:
		newPos = s.buf.Len() + int(offset)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("seek before start")
	}
	if newPos > s.buf.Len() {
		s.buf.Write(make([]byte, newPos-s.buf.Len()))
	}
	s.pos = newPos

	return int64(newPos), nil
}
