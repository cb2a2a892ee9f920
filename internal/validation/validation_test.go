package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateStationName_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateStationName(tc.input, 0)
			if !errors.Is(err, ErrNameEmpty) {
				t.Errorf("error = %v, want ErrNameEmpty", err)
			}
		})
	}
}

func TestValidateStationName_InvalidChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"slash", "Syd/ney"},
		{"percent", "Syd%ney"},
		{"control", "Syd\x00ney"},
		{"semicolon", "Sydney;rm"},
		{"newline inside", "Syd\nney"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateStationName(tc.input, 0)
			if !errors.Is(err, ErrNameInvalidChars) {
				t.Errorf("error = %v, want ErrNameInvalidChars", err)
			}
		})
	}
}

func TestValidateStationName_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single token", "Sydney", "Sydney"},
		{"with space", "Sydney Airport", "Sydney Airport"},
		{"trimmed", "  Bathurst \n", "Bathurst"},
		{"apostrophe", "O'Connell", "O'Connell"},
		{"underscore", "Sydney_Airport", "Sydney_Airport"},
		{"parens", "Moree (AWS)", "Moree (AWS)"},
		{"digits", "Station42", "Station42"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateStationName(tc.input, 0)
			if err != nil {
				t.Fatalf("ValidateStationName() err = %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateStationName_LengthBoundaries(t *testing.T) {
	if _, err := ValidateStationName(strings.Repeat("a", MaxNameLen), 0); err != nil {
		t.Errorf("at max: err = %v", err)
	}
	if _, err := ValidateStationName(strings.Repeat("a", MaxNameLen+1), 0); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("over max: err = %v, want ErrNameTooLong", err)
	}
	if _, err := ValidateStationName("abcdef", 5); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("custom max: err = %v, want ErrNameTooLong", err)
	}
	// Runes, not bytes.
	if _, err := ValidateStationName(strings.Repeat("ü", MaxNameLen), 0); err != nil {
		t.Errorf("multibyte at max: err = %v", err)
	}
}
