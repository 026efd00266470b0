// File: internal/services/attachment/errors.go
package attachment

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeThumbnail  ErrorType = "THUMBNAIL"
)

type AttachmentError struct {
	Type         ErrorType
	Operation    string
	Message      string
	AttachmentID string
	Cause        error
}

func (e *AttachmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Attachment %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Attachment %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *AttachmentError) Unwrap() error {
	return e.Cause
}

func NewValidationError(operation, msg string) *AttachmentError {
	return &AttachmentError{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewNotFoundError(operation, attachmentID string) *AttachmentError {
	return &AttachmentError{
		Type:         ErrTypeNotFound,
		Operation:    operation,
		Message:      "attachment not found",
		AttachmentID: attachmentID,
	}
}

func NewStorageError(operation, attachmentID string, cause error) *AttachmentError {
	return &AttachmentError{
		Type:         ErrTypeStorage,
		Operation:    operation,
		Message:      "storage operation failed",
		AttachmentID: attachmentID,
		Cause:        cause,
	}
}

// NewThumbnailError reports an image that could not be decoded or scaled.
func NewThumbnailError(operation string, cause error) *AttachmentError {
	return &AttachmentError{
		Type:      ErrTypeThumbnail,
		Operation: operation,
		Message:   "thumbnail generation failed",
		Cause:     cause,
	}
}

func IsNotFound(err error) bool   { return hasType(err, ErrTypeNotFound) }
func IsValidation(err error) bool { return hasType(err, ErrTypeValidation) }
func IsThumbnail(err error) bool  { return hasType(err, ErrTypeThumbnail) }

func hasType(err error, t ErrorType) bool {
	var attErr *AttachmentError
	return errors.As(err, &attErr) && attErr.Type == t
}
