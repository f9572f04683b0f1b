package utils

import (
	"fmt"
	"net/url"
	"regexp"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,62}$`)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

// ValidateName checks a short identifier such as a network name.
func ValidateName(field, name string) error {
	if !nameRegex.MatchString(name) {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q must start with a letter or digit and use only letters, digits, '.', '_' or '-'", name),
		}
	}
	return nil
}

// ValidateServerURL checks raw is an absolute http or https url.
func ValidateServerURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%q must use http or https", raw)}
	}
	if u.Host == "" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%q has no host", raw)}
	}
	return nil
}
