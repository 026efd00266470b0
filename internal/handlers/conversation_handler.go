// File: internal/handlers/conversation_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-tilde/internal/dtos"
	"github.com/iyunix/go-tilde/internal/export"
	"github.com/iyunix/go-tilde/internal/services/chat"
	"github.com/iyunix/go-tilde/internal/services/conversation"
)

const maxListLimit = 100

type ConversationHandler struct {
	conversations *conversation.Service
	coordinator   *chat.Coordinator
	exporter      *export.Exporter
	logger        Logger
}

func NewConversationHandler(cs *conversation.Service, coord *chat.Coordinator, exp *export.Exporter, logger Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: cs,
		coordinator:   coord,
		exporter:      exp,
		logger:        logger,
	}
}

// ListConversations returns summaries, newest first. With q it searches
// titles; with limit it returns the most recent ones.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			writeError(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	var err error
	var list []dtos.ConversationSummaryDTO
	switch {
	case query != "":
		convs, searchErr := h.conversations.SearchConversations(r.Context(), query, limit)
		list, err = dtos.FromConversations(convs), searchErr
	case limit > 0:
		convs, recentErr := h.conversations.GetRecentConversations(r.Context(), limit)
		list, err = dtos.FromConversations(convs), recentErr
	default:
		convs, allErr := h.conversations.GetAllConversations(r.Context())
		list, err = dtos.FromConversations(convs), allErr
	}
	if err != nil {
		writeServiceError(w, h.logger, "ListConversations", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req dtos.CreateConversationRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.CreateConversation(r.Context(), req.Title)
	if err != nil {
		writeServiceError(w, h.logger, "CreateConversation", err)
		return
	}
	writeJSON(w, http.StatusCreated, dtos.FromConversation(*conv))
}

func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conv, messages, err := h.conversations.GetConversationWithMessages(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "GetConversation", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.ConversationDTO{
		ConversationSummaryDTO: dtos.FromConversation(*conv),
		Messages:               dtos.FromMessages(messages),
	})
}

func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.conversations.GetMessages(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, "GetMessages", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FromMessages(messages))
}

func (h *ConversationHandler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req dtos.RenameConversationRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := h.conversations.UpdateConversationTitle(r.Context(), id, req.Title); err != nil {
		writeServiceError(w, h.logger, "RenameConversation", err)
		return
	}

	conv, err := h.conversations.GetConversation(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "RenameConversation", err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FromConversation(*conv))
}

// DeleteConversation stops any stream for the conversation before removing
// it together with its attachments.
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.coordinator.Cancel(id)

	if err := h.conversations.DeleteConversation(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "DeleteConversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportConversation downloads the conversation as markdown or HTML.
func (h *ConversationHandler) ExportConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.GetConversation(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "ExportConversation", err)
		return
	}

	var body []byte
	switch format {
	case export.FormatHTML:
		messages, msgErr := h.conversations.GetMessages(r.Context(), id)
		if msgErr != nil {
			writeServiceError(w, h.logger, "ExportConversation", msgErr)
			return
		}
		body, err = h.exporter.HTML(conv, messages)
	default:
		body, err = h.exporter.Markdown(conv)
	}
	if err != nil {
		writeServiceError(w, h.logger, "ExportConversation", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(conv, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
