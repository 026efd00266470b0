// File: internal/services/attachment/service.go
package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iyunix/go-tilde/internal/domain"
	attrepo "github.com/iyunix/go-tilde/internal/repository/attachment"
)

// BlobPathPrefix is the route display handles are served under.
const BlobPathPrefix = "/api/blobs/"

// Service stores attachment bytes independently of any conversation text.
type Service struct {
	repo        attrepo.AttachmentRepository
	handles     *HandleCache
	thumbnailer Thumbnailer
	config      *Config
	logger      Logger
	now         func() time.Time
	newID       func() string
}

func NewService(repo attrepo.AttachmentRepository, handles *HandleCache, cfg *Config, logger Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("attachment repository cannot be nil")
	}
	if handles == nil {
		return nil, fmt.Errorf("handle cache cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid attachment config: %w", err)
	}

	return &Service{
		repo:    repo,
		handles: handles,
		thumbnailer: Thumbnailer{
			MaxDimension: cfg.ThumbnailMaxDimension,
			Quality:      cfg.ThumbnailQuality,
			MaxPixels:    cfg.MaxImagePixels,
		},
		config: cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// SaveAttachment classifies and stores file. Images get a thumbnail first;
// if that fails nothing is stored.
func (s *Service) SaveAttachment(ctx context.Context, conversationID string, messageIndex int, file File) (*domain.Attachment, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, NewValidationError("SaveAttachment", "conversation id is required")
	}
	if messageIndex < 0 {
		return nil, NewValidationError("SaveAttachment", "message index cannot be negative")
	}
	if len(file.Data) == 0 {
		return nil, NewValidationError("SaveAttachment", "file is empty")
	}
	if int64(len(file.Data)) > s.config.MaxFileSize {
		return nil, NewValidationError("SaveAttachment", fmt.Sprintf("file exceeds %d bytes", s.config.MaxFileSize))
	}

	mimeType := strings.TrimSpace(file.MimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(file.Data)
	}
	kind := domain.ClassifyMimeType(mimeType)

	var thumbnail []byte
	if kind == domain.AttachmentTypeImage {
		thumb, err := s.thumbnailer.Generate(file.Data)
		if err != nil {
			s.logger.Warn("thumbnail generation failed", "conversation_id", conversationID, "mime_type", mimeType, "error", err)
			return nil, NewThumbnailError("SaveAttachment", err)
		}
		thumbnail = thumb
	}

	att := &domain.Attachment{
		ID:             s.newID(),
		ConversationID: conversationID,
		MessageIndex:   messageIndex,
		Type:           kind,
		MimeType:       mimeType,
		Filename:       file.Filename,
		Blob:           file.Data,
		Thumbnail:      thumbnail,
		Created:        s.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	if err := s.repo.Create(ctx, att); err != nil {
		s.logger.Error("failed to store attachment", "conversation_id", conversationID, "error", err)
		return nil, NewStorageError("SaveAttachment", att.ID, err)
	}

	s.logger.Info("attachment stored",
		"attachment_id", att.ID,
		"conversation_id", conversationID,
		"type", kind,
		"size", len(file.Data))
	return att, nil
}

func (s *Service) GetAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("GetAttachment", "attachment id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	att, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, attrepo.ErrAttachmentNotFound) {
		return nil, NewNotFoundError("GetAttachment", id)
	}
	if err != nil {
		s.logger.Error("failed to load attachment", "attachment_id", id, "error", err)
		return nil, NewStorageError("GetAttachment", id, err)
	}
	return att, nil
}

// GetAttachments resolves ids in order, skipping ids that no longer exist.
func (s *Service) GetAttachments(ctx context.Context, ids []string) ([]domain.Attachment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	atts, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load attachments", "count", len(ids), "error", err)
		return nil, NewStorageError("GetAttachments", "", err)
	}
	if len(atts) < len(ids) {
		s.logger.Debug("some attachment references are dangling", "requested", len(ids), "found", len(atts))
	}
	return atts, nil
}

func (s *Service) GetConversationAttachments(ctx context.Context, conversationID string) ([]domain.Attachment, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, NewValidationError("GetConversationAttachments", "conversation id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	atts, err := s.repo.FindByConversationID(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to list attachments", "conversation_id", conversationID, "error", err)
		return nil, NewStorageError("GetConversationAttachments", "", err)
	}
	return atts, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("DeleteAttachment", "attachment id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, attrepo.ErrAttachmentNotFound) {
		return NewNotFoundError("DeleteAttachment", id)
	}
	if err != nil {
		s.logger.Error("failed to delete attachment", "attachment_id", id, "error", err)
		return NewStorageError("DeleteAttachment", id, err)
	}

	s.logger.Info("attachment deleted", "attachment_id", id)
	return nil
}

// GetAttachmentURL issues a display URL for the full attachment. The URL is
// only valid in this process and only until the handle expires.
func (s *Service) GetAttachmentURL(att *domain.Attachment) (string, error) {
	if att == nil || len(att.Blob) == 0 {
		return "", NewValidationError("GetAttachmentURL", "attachment has no data")
	}
	return s.issue("GetAttachmentURL", att.ID, Blob{MimeType: att.MimeType, Data: att.Blob})
}

// GetThumbnailURL issues a display URL for the thumbnail, or "" when the
// attachment has none.
func (s *Service) GetThumbnailURL(att *domain.Attachment) (string, error) {
	if att == nil || !att.HasThumbnail() {
		return "", nil
	}
	return s.issue("GetThumbnailURL", att.ID, Blob{MimeType: "image/jpeg", Data: att.Thumbnail})
}

// ResolveHandle returns the bytes behind a display handle.
func (s *Service) ResolveHandle(handle string) (Blob, bool) {
	return s.handles.Resolve(handle)
}

// RevokeURL invalidates a URL issued by this service.
func (s *Service) RevokeURL(url string) {
	if handle, ok := strings.CutPrefix(url, BlobPathPrefix); ok && handle != "" {
		s.handles.Revoke(handle)
	}
}

func (s *Service) issue(operation, attachmentID string, blob Blob) (string, error) {
	handle, err := s.handles.Issue(blob)
	if err != nil {
		s.logger.Warn("failed to issue display handle", "attachment_id", attachmentID, "error", err)
		return "", NewStorageError(operation, attachmentID, err)
	}
	return BlobPathPrefix + handle, nil
}

// FileToBase64 encodes raw bytes as standard base64 with no data URI prefix.
func FileToBase64(blob []byte) string {
	return base64.StdEncoding.EncodeToString(blob)
}
