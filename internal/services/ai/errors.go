// File: internal/services/ai/errors.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeNetwork    ErrorType = "NETWORK"
	ErrTypeProvider   ErrorType = "PROVIDER"
	ErrTypeRateLimit  ErrorType = "RATE_LIMIT"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeCanceled   ErrorType = "CANCELED"
)

type AIError struct {
	Type      ErrorType
	Code      int
	Message   string
	Model     string
	Operation string
	Cause     error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("AI %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("AI %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *AIError) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown to the user for this error.
func (e *AIError) UserMessage() string {
	return e.Message
}

func NewConfigError(msg string) *AIError {
	return &AIError{Type: ErrTypeConfig, Message: msg, Operation: "config"}
}

func NewProviderError(operation, msg string, cause error) *AIError {
	return &AIError{Type: ErrTypeProvider, Operation: operation, Message: msg, Cause: cause}
}

// NewValidationError reports a credential the provider refused.
func NewValidationError(operation, msg string, cause error) *AIError {
	return &AIError{Type: ErrTypeValidation, Operation: operation, Message: msg, Cause: cause}
}

// classifyError maps a client failure onto an AIError. Cancellation by the
// caller is kept distinct from every failure type.
func classifyError(operation, model string, err error) *AIError {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr
	}
	if errors.Is(err, context.Canceled) {
		return &AIError{Type: ErrTypeCanceled, Operation: operation, Model: model, Message: "request canceled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AIError{Type: ErrTypeNetwork, Operation: operation, Model: model, Message: "request timed out", Cause: err}
	}

	status, msg := 0, ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return &AIError{Type: ErrTypeNetwork, Operation: operation, Model: model, Message: "could not reach the model provider", Cause: err}
	}
	if msg == "" {
		msg = fmt.Sprintf("API error: %d", status)
	}

	out := &AIError{Operation: operation, Model: model, Code: status, Message: msg, Cause: err}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		out.Type = ErrTypeValidation
	case status == http.StatusTooManyRequests:
		out.Type = ErrTypeRateLimit
	default:
		out.Type = ErrTypeProvider
	}
	return out
}

// IsCanceled reports whether err is a deliberate stop rather than a failure.
func IsCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var aiErr *AIError
	return errors.As(err, &aiErr) && aiErr.Type == ErrTypeCanceled
}

// IsValidation reports whether err is a rejected credential.
func IsValidation(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr) && aiErr.Type == ErrTypeValidation
}

func isRetryable(err error) bool {
	var aiErr *AIError
	if !errors.As(err, &aiErr) {
		return true
	}
	switch aiErr.Type {
	case ErrTypeConfig, ErrTypeValidation, ErrTypeCanceled:
		return false
	case ErrTypeProvider:
		return aiErr.Code == 0 || aiErr.Code >= 500
	default:
		return true
	}
}
