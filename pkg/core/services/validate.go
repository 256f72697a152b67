package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a rejected input field. Validation failures are
// resolved at the boundary and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Names are 2-100 chars of letters, spaces, and common punctuation.
var nameRe = regexp.MustCompile(`^[\p{L}][\p{L} .,'-]{1,99}$`)

// NormalizePhone strips formatting characters and validates the result as an
// E.164 number. A leading 00 is rewritten to +.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}

	if err := validate.Var(cleaned, "required,e164"); err != nil {
		return "", &ValidationError{Field: "phone", Reason: fmt.Sprintf("%q is not an E.164 number", phone)}
	}

	return cleaned, nil
}

// ValidateName checks the 2-100 char letters/space/punctuation rule
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return &ValidationError{Field: "name", Reason: "must be 2-100 letters, spaces, or punctuation"}
	}
	return nil
}
