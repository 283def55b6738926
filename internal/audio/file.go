package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format selects the sample encoding of a written WAV.
type Format string

const (
	FormatFloat32 Format = "float32"
	FormatPCM16   Format = "pcm16"
)

// ParseFormat accepts the config spelling of a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatFloat32, "":
		return FormatFloat32, nil
	case FormatPCM16:
		return FormatPCM16, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want float32 or pcm16)", s)
	}
}

// Encode writes w as a WAV in the given format.
func Encode(w Waveform, format Format) ([]byte, error) {
	switch format {
	case FormatFloat32:
		return EncodeWAV(w)
	case FormatPCM16:
		return EncodePCM16(w)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile stores WAV bytes at path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
