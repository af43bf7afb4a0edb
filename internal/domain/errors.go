package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a product or store does not exist for the tenant
	ErrNotFound = errors.New("not found")
	// ErrMissingTenant guards every tenant scoped operation
	ErrMissingTenant = errors.New("missing store id")
	// ErrDataQuality marks a computation that produced non-finite numbers
	ErrDataQuality = errors.New("non-finite prediction values")
)

// ValidationError is a field level rejection of caller input
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err wraps a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
