// File: internal/handlers/log_handler.go
package handlers

import (
	"net/http"
	"strings"
)

const maxClientMessage = 2000

// FrontendLogPayload defines the structure for logs coming from the browser.
type FrontendLogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Context any    `json:"context,omitempty"`
}

type LogHandler struct {
	logger Logger
}

func NewLogHandler(logger Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// LogFrontendEvent forwards a client log line to the server log at the
// level the client asked for.
func (h *LogHandler) LogFrontendEvent(w http.ResponseWriter, r *http.Request) {
	var payload FrontendLogPayload
	if err := decodeJSON(r, &payload); err != nil || strings.TrimSpace(payload.Message) == "" {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	message := payload.Message
	if len(message) > maxClientMessage {
		message = message[:maxClientMessage]
	}

	keysAndValues := []interface{}{"source", "client", "client_message", message}
	if payload.Context != nil {
		keysAndValues = append(keysAndValues, "context", payload.Context)
	}

	switch strings.ToLower(payload.Level) {
	case "error":
		h.logger.Error("client log", keysAndValues...)
	case "warn", "warning":
		h.logger.Warn("client log", keysAndValues...)
	case "debug":
		h.logger.Debug("client log", keysAndValues...)
	default:
		h.logger.Info("client log", keysAndValues...)
	}

	w.WriteHeader(http.StatusNoContent)
}
