// File: internal/handlers/attachment_handler.go
package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-tilde/internal/domain"
	"github.com/iyunix/go-tilde/internal/dtos"
	"github.com/iyunix/go-tilde/internal/services/attachment"
)

const multipartMemory = 8 << 20

type AttachmentHandler struct {
	attachments *attachment.Service
	maxUpload   int64
	logger      Logger
}

// NewAttachmentHandler caps each request body at maxUpload bytes.
func NewAttachmentHandler(as *attachment.Service, maxUpload int64, logger Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: as,
		maxUpload:   maxUpload,
		logger:      logger,
	}
}

// UploadAttachments stores every "file" part of a multipart form against
// the conversation. The optional messageIndex field defaults to 0.
func (h *AttachmentHandler) UploadAttachments(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, "Invalid or oversized upload", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	messageIndex := 0
	if raw := r.FormValue("messageIndex"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "messageIndex must be a number", http.StatusBadRequest)
			return
		}
		messageIndex = n
	}

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}

	// An upload is all or nothing: files stored before a failure are removed.
	stored := make([]domain.Attachment, 0, len(parts))
	for _, part := range parts {
		data, err := readPart(part)
		if err != nil {
			h.discard(r, stored)
			writeError(w, fmt.Sprintf("Could not read %s", part.Filename), http.StatusBadRequest)
			return
		}

		att, err := h.attachments.SaveAttachment(r.Context(), conversationID, messageIndex, attachment.File{
			Filename: part.Filename,
			MimeType: part.Header.Get("Content-Type"),
			Data:     data,
		})
		if err != nil {
			h.discard(r, stored)
			writeServiceError(w, h.logger, "UploadAttachments", err)
			return
		}
		stored = append(stored, *att)
	}

	saved := make([]dtos.AttachmentDTO, 0, len(stored))
	for _, att := range stored {
		saved = append(saved, h.present(att))
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *AttachmentHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	att, err := h.attachments.GetAttachment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, "GetAttachment", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(*att))
}

func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := h.attachments.DeleteAttachment(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, h.logger, "DeleteAttachment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeBlob serves the bytes behind a display handle issued by the
// attachment service.
func (h *AttachmentHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	blob, ok := h.attachments.ResolveHandle(mux.Vars(r)["handle"])
	if !ok {
		writeError(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

// ===== HELPERS =====

// present maps an attachment and issues its display URLs. A URL that cannot
// be issued is left empty.
func (h *AttachmentHandler) present(att domain.Attachment) dtos.AttachmentDTO {
	url, err := h.attachments.GetAttachmentURL(&att)
	if err != nil {
		h.logger.Warn("no display url for attachment", "attachment_id", att.ID, "error", err)
	}
	thumbnailURL, err := h.attachments.GetThumbnailURL(&att)
	if err != nil {
		h.logger.Warn("no thumbnail url for attachment", "attachment_id", att.ID, "error", err)
	}
	return dtos.FromAttachment(att, url, thumbnailURL)
}

// discard deletes attachments stored earlier in a failed upload. It runs even
// when the client has gone away.
func (h *AttachmentHandler) discard(r *http.Request, stored []domain.Attachment) {
	ctx := context.WithoutCancel(r.Context())
	for _, att := range stored {
		if err := h.attachments.DeleteAttachment(ctx, att.ID); err != nil {
			h.logger.Error("failed to discard partial upload", "attachment_id", att.ID, "error", err)
		}
	}
}

func readPart(part *multipart.FileHeader) ([]byte, error) {
	f, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
