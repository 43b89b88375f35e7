package accounts

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

// ErrValidation is the category error wrapped by every input-validation
// failure in this package; the boundary maps it to a 400.
var ErrValidation = errors.New("validation failed")

var (
	ErrHandleInvalid      = fmt.Errorf("%w: handle must be 3-15 letters or spaces", ErrValidation)
	ErrEmailInvalid       = fmt.Errorf("%w: invalid email address", ErrValidation)
	ErrDisplayNameInvalid = fmt.Errorf("%w: display name must be 3-15 characters", ErrValidation)
	ErrWeakPassword       = fmt.Errorf("%w: password must be at least 8 characters with upper, lower, digit and symbol", ErrValidation)
	ErrAvatarRequired     = fmt.Errorf("%w: avatar is required", ErrValidation)
)

var handlePattern = regexp.MustCompile(`^[a-zA-Z ]+$`)

// NormalizeHandle lower-cases and trims a handle or email-style identifier.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

func validateHandle(handle string) error {
	if len(handle) < 3 || len(handle) > 15 || !handlePattern.MatchString(handle) {
		return ErrHandleInvalid
	}
	return nil
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrEmailInvalid
	}
	return nil
}

func validateDisplayName(name string) error {
	if n := len(strings.TrimSpace(name)); n < 3 || n > 15 {
		return ErrDisplayNameInvalid
	}
	return nil
}

// validatePassword enforces the strength policy: at least 8 characters with
// one upper-case letter, one lower-case letter, one digit and one symbol.
func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if !upper || !lower || !digit || !symbol {
		return ErrWeakPassword
	}
	return nil
}
