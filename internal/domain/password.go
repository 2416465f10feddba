package domain

import (
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLen = 8
	// bcrypt ignores input beyond 72 bytes.
	MaxPasswordBytes = 72
	MinUsernameLen   = 3
	MaxUsernameLen   = 50
)

// CheckPasswordStrength requires a minimum length and at least three of the
// four character classes (upper, lower, digit, symbol).
func CheckPasswordStrength(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLen {
		return ErrValidation(map[string]string{"password": "must be at least 8 characters"})
	}
	if len(pw) > MaxPasswordBytes {
		return ErrValidation(map[string]string{"password": "must be at most 72 bytes"})
	}

	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	classes := 0
	for _, ok := range []bool{upper, lower, digit, symbol} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return ErrValidation(map[string]string{"password": "must mix at least three of: upper case, lower case, digits, symbols"})
	}
	return nil
}

// ValidateUsername allows letters, digits, '_', '-' and '.', starting with a
// letter or digit.
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return ErrValidation(map[string]string{"username": "must be 3-50 characters"})
	}
	for i, r := range name {
		ok := unicode.IsLetter(r) || unicode.IsDigit(r)
		if i > 0 {
			ok = ok || r == '_' || r == '-' || r == '.'
		}
		if !ok {
			return ErrValidation(map[string]string{"username": "may contain letters, digits, '_', '-' and '.' and must start with a letter or digit"})
		}
	}
	return nil
}
