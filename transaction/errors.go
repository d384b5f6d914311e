package transaction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an id does not resolve to a stored transaction
	ErrNotFound = errors.New("transaction not found")
	// ErrInvalidJSON is returned when a request body is not a JSON object
	ErrInvalidJSON = errors.New("invalid JSON")
)

// ValidationError lists the fields that made a payload unacceptable
type ValidationError struct {
	Message string
	// required fields that were absent, null or empty
	Missing []string
	// fields whose value could not be decoded or is outside the allowed values
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	if len(parts) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}
