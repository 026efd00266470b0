// File: internal/services/profile/errors.go
package profile

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeSecret     ErrorType = "SECRET"
)

type ProfileError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
}

func (e *ProfileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Profile %s error in %s: %s (caused by: %v)", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Profile %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ProfileError) Unwrap() error {
	return e.Cause
}

func NewValidationError(operation, msg string, cause error) *ProfileError {
	return &ProfileError{Type: ErrTypeValidation, Operation: operation, Message: msg, Cause: cause}
}

func NewStorageError(operation string, cause error) *ProfileError {
	return &ProfileError{Type: ErrTypeStorage, Operation: operation, Message: "settings storage failed", Cause: cause}
}

func NewSecretError(operation, msg string, cause error) *ProfileError {
	return &ProfileError{Type: ErrTypeSecret, Operation: operation, Message: msg, Cause: cause}
}

func IsValidation(err error) bool {
	var profileErr *ProfileError
	return errors.As(err, &profileErr) && profileErr.Type == ErrTypeValidation
}
