package prompt

import (
	"math"
	"math/big"
	"strconv"
)

// Grammar is the set of marker strings that frame a completion prompt.
// Every marker must exist as a single entry in the tokenizer vocabulary.
type Grammar struct {
	Version string

	BeginOfTurn   string
	EndOfTurn     string
	TextStart     string
	TextEnd       string
	AudioStart    string
	AudioEnd      string
	CodeStart     string
	CodeEnd       string
	TextSeparator string
}

// GrammarV02 is the marker set used by the 0.2 model family.
var GrammarV02 = Grammar{
	Version:       "0.2",
	BeginOfTurn:   "<|im_start|>",
	EndOfTurn:     "<|im_end|>",
	TextStart:     "<|text_start|>",
	TextEnd:       "<|text_end|>",
	AudioStart:    "<|audio_start|>",
	AudioEnd:      "<|audio_end|>",
	CodeStart:     "<|code_start|>",
	CodeEnd:       "<|code_end|>",
	TextSeparator: "<|text_sep|>",
}

// AudioCode returns the marker for one audio code, e.g. "<|42|>".
func (g Grammar) AudioCode(code int) string {
	return "<|" + strconv.Itoa(code) + "|>"
}

// Timestamp returns the duration marker for a word, e.g. "<|t_0.35|>".
func (g Grammar) Timestamp(seconds float64) string {
	return "<|t_" + formatSeconds(seconds) + "|>"
}

// formatSeconds renders seconds with exactly two decimals. Exact halves
// round up (0.125 -> "0.13"), which strconv's round-half-even would not do.
func formatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return strconv.FormatFloat(seconds, 'f', 2, 64)
	}
	if seconds < 0 {
		return "-" + formatSeconds(-seconds)
	}

	// 53 mantissa bits times 100 (7 bits) fit exactly in 64 bits of precision.
	scaled := new(big.Float).SetPrec(64).SetFloat64(seconds)
	scaled.Mul(scaled, big.NewFloat(100))

	hundredths, _ := scaled.Int(nil)
	frac := new(big.Float).SetPrec(64).Sub(scaled, new(big.Float).SetInt(hundredths))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		hundredths.Add(hundredths, big.NewInt(1))
	}

	digits := hundredths.String()
	for len(digits) < 3 {
		digits = "0" + digits
	}

	return digits[:len(digits)-2] + "." + digits[len(digits)-2:]
}
