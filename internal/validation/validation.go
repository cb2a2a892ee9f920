package validation

import (
	"errors"
	"strings"
	"unicode"
)

// MaxNameLen is the longest station name accepted, in runes.
const MaxNameLen = 50

// ErrNameEmpty is returned when the name is empty or whitespace-only after trim.
var ErrNameEmpty = errors.New("station name is required")

// ErrNameTooLong is returned when the name exceeds the maximum length.
var ErrNameTooLong = errors.New("station name too long")

// ErrNameInvalidChars is returned when the name contains disallowed characters.
var ErrNameInvalidChars = errors.New("station name contains invalid characters")

// ValidateStationName trims the input, enforces maxLen (in runes; <= 0 means
// MaxNameLen) and restricts to letters, digits, space, hyphen, apostrophe,
// period, underscore and parentheses. Returns the trimmed name.
// Case is preserved; matching against the catalog is case-insensitive.
func ValidateStationName(input string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = MaxNameLen
	}
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrNameEmpty
	}
	if len(r) > maxLen {
		return "", ErrNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', '-', '\'', '.', '_', '(', ')':
		return true
	}
	return false
}
