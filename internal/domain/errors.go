package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a rejected argument (negative minutes, bad count, malformed PIN).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals an unknown grant code or input that matches neither a code nor the PIN.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed signals a grant code that was consumed earlier.
	ErrAlreadyUsed = errors.New("code already used")
	// ErrPermissionMissing signals that usage statistics are not readable.
	ErrPermissionMissing = errors.New("usage permission missing")
	// ErrPermissionsRequired signals that blocking cannot be enabled until the host grants
	// usage access and enables the monitoring service.
	ErrPermissionsRequired = errors.New("permissions required")
)

// InvalidInputError wraps ErrInvalidInput with the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput.Error(), e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NewInvalidInput creates an invalid input error for a field.
func NewInvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
