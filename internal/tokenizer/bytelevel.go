package tokenizer

import "strings"

// Byte-level BPE vocabularies spell every byte as a printable rune so that
// merges never see raw whitespace or control bytes.
var (
	byteToRune [256]rune
	runeToByte = make(map[rune]byte, 256)
)

func init() {
	next := rune(256)

	for b := range 256 {
		printable := (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
		if printable {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = next
			next++
		}

		runeToByte[byteToRune[b]] = byte(b)
	}
}

// byteLevelEncode spells the UTF-8 bytes of s in the byte-level alphabet.
func byteLevelEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)

	for i := range len(s) {
		b.WriteRune(byteToRune[s[i]])
	}

	return b.String()
}

// byteLevelDecode reverses byteLevelEncode. Runes outside the alphabet are
// kept as UTF-8.
func byteLevelDecode(s string) []byte {
	out := make([]byte, 0, len(s))

	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			out = append(out, b)
			continue
		}

		out = append(out, string(r)...)
	}

	return out
}
