// File: internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/iyunix/go-tilde/internal/dtos"
	"github.com/iyunix/go-tilde/internal/services/ai"
	"github.com/iyunix/go-tilde/internal/services/attachment"
	"github.com/iyunix/go-tilde/internal/services/chat"
	"github.com/iyunix/go-tilde/internal/services/conversation"
	"github.com/iyunix/go-tilde/internal/services/profile"
)

// Logger defines the logging interface used by the handlers
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

const maxJSONBody = 1 << 20

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, dtos.ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto a status and a message that
// is safe to show.
func writeServiceError(w http.ResponseWriter, logger Logger, op string, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "operation", op, "error", err)
	} else {
		logger.Debug("request rejected", "operation", op, "status", status, "error", err)
	}
	writeError(w, message, status)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func classify(err error) (int, string) {
	var (
		chatErr    *chat.ChatError
		convErr    *conversation.ConversationError
		attErr     *attachment.AttachmentError
		profileErr *profile.ProfileError
		aiErr      *ai.AIError
	)

	switch {
	case errors.As(err, &chatErr):
		switch chatErr.Type {
		case chat.ErrTypeValidation:
			return http.StatusBadRequest, chatErr.Message
		case chat.ErrTypeBusy:
			return http.StatusConflict, chatErr.Message
		case chat.ErrTypeStreaming:
			if errors.As(err, &aiErr) {
				return http.StatusBadGateway, aiErr.UserMessage()
			}
			return http.StatusBadGateway, chatErr.Message
		}
	case errors.As(err, &convErr):
		switch convErr.Type {
		case conversation.ErrTypeValidation:
			return http.StatusBadRequest, convErr.Message
		case conversation.ErrTypeNotFound:
			return http.StatusNotFound, convErr.Message
		}
	case errors.As(err, &attErr):
		switch attErr.Type {
		case attachment.ErrTypeValidation:
			return http.StatusBadRequest, attErr.Message
		case attachment.ErrTypeNotFound:
			return http.StatusNotFound, attErr.Message
		case attachment.ErrTypeThumbnail:
			return http.StatusUnprocessableEntity, attErr.Message
		}
	case errors.As(err, &profileErr):
		if profileErr.Type == profile.ErrTypeValidation {
			return http.StatusUnprocessableEntity, profileErr.Message
		}
	}
	return http.StatusInternalServerError, "Something went wrong on our end."
}
