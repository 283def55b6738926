package text

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxExactInteger is the largest integer a float64 represents exactly
// without neighbours collapsing onto it (2^53 - 1).
const MaxExactInteger = 1<<53 - 1

var (
	// ErrInvalidNumber is returned for inputs that are not numbers at all (NaN).
	ErrInvalidNumber = errors.New("invalid number")
	// ErrNumberOutOfRange is returned for infinities and magnitudes above MaxExactInteger.
	ErrNumberOutOfRange = errors.New("number out of range")
)

var lessThanTwenty = [20]string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tens = [10]string{
	"zero", "ten", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

// scales is ordered from the largest magnitude down.
var scales = []struct {
	value uint64
	name  string
}{
	{1_000_000_000_000_000, "quadrillion"},
	{1_000_000_000_000, "trillion"},
	{1_000_000_000, "billion"},
	{1_000_000, "million"},
	{1_000, "thousand"},
}

// NumberToWords spells n as English words.
//
// Integers follow the usual cardinal form, e.g. 1234 becomes
// "one thousand, two hundred and thirty-four". Negative values are prefixed
// with "minus", and a fractional part is read digit by digit after "point":
// 12.34 becomes "twelve point three four".
func NumberToWords(n float64) (string, error) {
	if math.IsNaN(n) {
		return "", fmt.Errorf("%w: NaN", ErrInvalidNumber)
	}
	if math.IsInf(n, 0) || math.Abs(n) > MaxExactInteger {
		return "", fmt.Errorf("%w: %v exceeds ±%d", ErrNumberOutOfRange, n, int64(MaxExactInteger))
	}

	if n == 0 {
		if math.Signbit(n) {
			return "minus zero", nil
		}
		return "zero", nil
	}

	if n < 0 {
		words, err := spellPositive(-n)
		if err != nil {
			return "", err
		}
		return "minus " + words, nil
	}

	return spellPositive(n)
}

// spellPositive renders a finite, positive n using its shortest decimal form.
func spellPositive(n float64) (string, error) {
	digits := strconv.FormatFloat(n, 'f', -1, 64)

	intPart, fracPart, hasFrac := strings.Cut(digits, ".")

	whole, err := strconv.ParseUint(intPart, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidNumber, digits, err)
	}

	words := cardinal(whole)
	if !hasFrac {
		return words, nil
	}

	trimmed := strings.TrimRight(fracPart, "0")
	if len(trimmed) < len(fracPart) {
		trimmed += "0"
	}

	spoken := make([]string, 0, len(trimmed))
	for _, d := range trimmed {
		spoken = append(spoken, lessThanTwenty[d-'0'])
	}

	return words + " point " + strings.Join(spoken, " "), nil
}

// cardinal spells a non-negative integer no larger than MaxExactInteger.
func cardinal(n uint64) string {
	var (
		word      string
		remainder uint64
	)

	switch {
	case n < 20:
		word = lessThanTwenty[n]
	case n < 100:
		word = tens[n/10]
		if unit := n % 10; unit != 0 {
			word += "-" + lessThanTwenty[unit]
		}
	case n < 1000:
		remainder = n % 100
		word = cardinal(n/100) + " hundred"
	default:
		for _, s := range scales {
			if n >= s.value {
				remainder = n % s.value
				word = cardinal(n/s.value) + " " + s.name
				break
			}
		}
	}

	switch {
	case remainder == 0:
	case remainder < 100:
		word += " and " + cardinal(remainder)
	default:
		word += ", " + cardinal(remainder)
	}

	return word
}
