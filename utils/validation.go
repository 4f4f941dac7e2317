package utils

import (
	"regexp"
	"strings"
)

// FieldValidationError represents a validation error for a specific field
type FieldValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldValidationErrors represents multiple field validation errors
type FieldValidationErrors []FieldValidationError

// Error implements the error interface
func (e FieldValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Field+": "+err.Message)
	}
	return strings.Join(messages, "; ")
}

// Togolese mobile numbers: +228XXXXXXXX, 00228XXXXXXXX or 0XXXXXXXX where
// the subscriber part is exactly 8 digits.
var togoPhoneRegex = regexp.MustCompile(`^(\+228|00228|0)[0-9]{8}$`)

// NormalizePhoneNumber validates a Togolese mobile number and returns it in
// the canonical +228XXXXXXXX form. Spaces and dashes are stripped before
// validation.
func NormalizePhoneNumber(value string) (string, bool) {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(value)
	if !togoPhoneRegex.MatchString(clean) {
		return "", false
	}
	switch {
	case strings.HasPrefix(clean, "+228"):
		return clean, true
	case strings.HasPrefix(clean, "00228"):
		return "+228" + clean[5:], true
	default: // 0XXXXXXXX
		return "+228" + clean[1:], true
	}
}

// ValidNetwork reports whether the network selector is one PayGate supports.
func ValidNetwork(network string) bool {
	return network == "FLOOZ" || network == "TMONEY"
}
