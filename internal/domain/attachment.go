// File: internal/domain/attachment.go
package domain

import (
	"strings"
	"time"
)

// AttachmentType is the coarse classification of an attachment's MIME type.
type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypePDF   AttachmentType = "pdf"
	AttachmentTypeFile  AttachmentType = "file"
)

// ClassifyMimeType maps a MIME type onto an AttachmentType.
func ClassifyMimeType(mimeType string) AttachmentType {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return AttachmentTypeImage
	case mt == "application/pdf":
		return AttachmentTypePDF
	default:
		return AttachmentTypeFile
	}
}

// Attachment is a binary object owned by a conversation and referenced from
// message content by id only.
type Attachment struct {
	ID             string         `json:"id" gorm:"primaryKey;size:64"`
	ConversationID string         `json:"conversationId" gorm:"not null;index;size:64"`
	MessageIndex   int            `json:"messageIndex" gorm:"index"`
	Type           AttachmentType `json:"type" gorm:"not null;size:16"`
	MimeType       string         `json:"mimeType" gorm:"not null;size:128"`
	Filename       string         `json:"filename" gorm:"size:255"`
	Blob           []byte         `json:"-" gorm:"not null"`
	Thumbnail      []byte         `json:"-"`
	Created        time.Time      `json:"created" gorm:"not null;index"`
}

// HasThumbnail reports whether a thumbnail was generated for the attachment.
func (a *Attachment) HasThumbnail() bool {
	return len(a.Thumbnail) > 0
}
