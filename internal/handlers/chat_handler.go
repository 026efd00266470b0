// File: internal/handlers/chat_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-tilde/internal/domain"
	"github.com/iyunix/go-tilde/internal/dtos"
	"github.com/iyunix/go-tilde/internal/services/chat"
	"github.com/iyunix/go-tilde/internal/services/conversation"
)

type ChatHandler struct {
	conversations *conversation.Service
	coordinator   *chat.Coordinator
	logger        Logger
}

func NewChatHandler(cs *conversation.Service, coord *chat.Coordinator, logger Logger) *ChatHandler {
	return &ChatHandler{
		conversations: cs,
		coordinator:   coord,
		logger:        logger,
	}
}

// StreamChat runs one turn and relays it as server-sent events:
// conversation, token, complete and error. Closing the connection cancels
// the turn.
func (h *ChatHandler) StreamChat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	var req dtos.ChatStreamRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	id := strings.TrimSpace(req.ConversationID)
	messages, err := h.conversations.GetMessages(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "StreamChat", err)
		return
	}
	session := chat.NewSession(id, messages)

	stream := &eventStream{w: w, flusher: flusher}
	result, err := h.coordinator.Send(r.Context(), session, chat.SendRequest{
		Content:       req.Content,
		AttachmentIDs: req.AttachmentIDs,
	}, chat.Observer{
		OnConversation: func(conv *domain.Conversation) {
			stream.send("conversation", dtos.FromConversation(*conv))
		},
		OnToken: func(token string) {
			stream.send("token", map[string]string{"token": token})
		},
		OnComplete: func(full string) {
			stream.send("complete", map[string]string{"text": full})
		},
		OnError: func(err error) {
			_, message := classify(err)
			stream.send("error", dtos.ErrorResponse{Error: message})
			stream.reported = true
		},
	})

	switch {
	case err != nil && !stream.started():
		writeServiceError(w, h.logger, "StreamChat", err)
	case err != nil && !stream.reported:
		h.logger.Error("stream ended with error", "conversation_id", session.ConversationID(), "error", err)
		_, message := classify(err)
		stream.send("error", dtos.ErrorResponse{Error: message})
	case err == nil && result.Canceled:
		h.logger.Info("stream canceled", "conversation_id", result.ConversationID, "chars", len(result.Text))
		stream.send("canceled", map[string]string{"text": result.Text})
	}
}

// CancelStream stops the in-flight turn for a conversation.
func (h *ChatHandler) CancelStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.coordinator.Cancel(id) {
		writeError(w, "No response is streaming for this conversation", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== HELPERS =====

// eventStream writes SSE frames. Headers go out with the first event so
// errors raised before any event can still be sent as plain JSON.
type eventStream struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	open     bool
	reported bool
}

func (s *eventStream) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *eventStream) send(event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload, _ = json.Marshal(dtos.ErrorResponse{Error: fmt.Sprintf("encode %s event: %v", event, err)})
		event = "error"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.open = true
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return
	}
	s.flusher.Flush()
}
