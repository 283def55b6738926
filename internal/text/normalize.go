// Package text turns raw input text into the lowercase word sequence the
// OuteTTS prompt grammar expects.
package text

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// LanguageEnglish is the only language with normalization rules.
const LanguageEnglish = "en"

// ErrUnsupportedLanguage is returned when no normalization rules exist for a language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

var numeralPattern = regexp.MustCompile(`\d+(\.\d+)?`)

// separators are replaced by a space before non-letters are dropped, so
// "well-known" becomes two words instead of one.
var separators = strings.NewReplacer(
	"-", " ",
	"_", " ",
	"/", " ",
	",", " ",
	".", " ",
	`\`, " ",
)

// Normalize converts text into an ordered sequence of lowercase words.
//
// Passes run in a fixed order: lowercase, spell out numerals, turn separators
// into spaces, drop everything that is not a letter or whitespace, then split
// on whitespace. Numerals are expanded before punctuation is removed, so "3."
// is read as the number three. Empty input yields an empty slice.
func Normalize(s, language string) ([]string, error) {
	if language != LanguageEnglish {
		return nil, fmt.Errorf("%w: %q has no normalization rules", ErrUnsupportedLanguage, language)
	}

	s = strings.ToLower(s)

	s, err := expandNumerals(s)
	if err != nil {
		return nil, err
	}

	s = separators.Replace(s)
	s = strings.Map(keepLetters, s)

	words := strings.Fields(s)
	if words == nil {
		return []string{}, nil
	}

	return words, nil
}

// expandNumerals replaces every maximal integer or decimal numeral with its
// spelled-out form. The first conversion failure aborts the whole pass.
func expandNumerals(s string) (string, error) {
	var firstErr error

	out := numeralPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		n, err := strconv.ParseFloat(match, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				firstErr = fmt.Errorf("numeral %q: %w", match, ErrNumberOutOfRange)
			} else {
				firstErr = fmt.Errorf("numeral %q: %w", match, ErrInvalidNumber)
			}
			return match
		}

		words, err := NumberToWords(n)
		if err != nil {
			firstErr = fmt.Errorf("numeral %q: %w", match, err)
			return match
		}

		return words
	})
	if firstErr != nil {
		return "", firstErr
	}

	return out, nil
}

// keepLetters keeps a-z, folds any whitespace to a plain space and drops the rest.
// U+FEFF counts as whitespace even though Unicode no longer classes it so.
func keepLetters(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return r
	case unicode.IsSpace(r), r == '\ufeff':
		return ' '
	default:
		return -1
	}
}
