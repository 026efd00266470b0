// File: internal/services/chat/errors.go
package chat

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeStreaming  ErrorType = "STREAMING"
	ErrTypeBusy       ErrorType = "BUSY"
)

type ChatError struct {
	Type           ErrorType
	Operation      string
	Message        string
	ConversationID string
	Cause          error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Chat %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Chat %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ChatError) Unwrap() error {
	return e.Cause
}

func NewValidationError(operation, msg string) *ChatError {
	return &ChatError{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewStorageError(operation, conversationID string, cause error) *ChatError {
	return &ChatError{
		Type:           ErrTypeStorage,
		Operation:      operation,
		Message:        "conversation storage failed",
		ConversationID: conversationID,
		Cause:          cause,
	}
}

func NewStreamingError(conversationID string, cause error) *ChatError {
	return &ChatError{
		Type:           ErrTypeStreaming,
		Operation:      "stream",
		Message:        "response streaming failed",
		ConversationID: conversationID,
		Cause:          cause,
	}
}

func NewBusyError(conversationID string) *ChatError {
	return &ChatError{
		Type:           ErrTypeBusy,
		Operation:      "send",
		Message:        "a response is already streaming for this conversation",
		ConversationID: conversationID,
	}
}

func IsBusy(err error) bool       { return hasType(err, ErrTypeBusy) }
func IsValidation(err error) bool { return hasType(err, ErrTypeValidation) }
func IsStreaming(err error) bool  { return hasType(err, ErrTypeStreaming) }

func hasType(err error, t ErrorType) bool {
	var chatErr *ChatError
	return errors.As(err, &chatErr) && chatErr.Type == t
}
