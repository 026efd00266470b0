// File: internal/services/conversation/errors.go
package conversation

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeStorage    ErrorType = "STORAGE"
)

type ConversationError struct {
	Type           ErrorType
	Operation      string
	Message        string
	ConversationID string
	Cause          error
}

func (e *ConversationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Conversation %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Conversation %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ConversationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(operation, msg string) *ConversationError {
	return &ConversationError{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewNotFoundError(operation, conversationID string) *ConversationError {
	return &ConversationError{
		Type:           ErrTypeNotFound,
		Operation:      operation,
		Message:        "conversation not found",
		ConversationID: conversationID,
	}
}

func NewStorageError(operation, conversationID string, cause error) *ConversationError {
	return &ConversationError{
		Type:           ErrTypeStorage,
		Operation:      operation,
		Message:        "storage operation failed",
		ConversationID: conversationID,
		Cause:          cause,
	}
}

// IsNotFound reports whether err is a NOT_FOUND ConversationError.
func IsNotFound(err error) bool {
	return hasType(err, ErrTypeNotFound)
}

// IsValidation reports whether err is a VALIDATION ConversationError.
func IsValidation(err error) bool {
	return hasType(err, ErrTypeValidation)
}

func hasType(err error, t ErrorType) bool {
	var convErr *ConversationError
	return errors.As(err, &convErr) && convErr.Type == t
}
