// File: internal/services/chat/interface.go
package chat

import (
	"context"

	"github.com/iyunix/go-tilde/internal/domain"
)

// ConversationStore is the part of the conversation service a turn writes through.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	AddMessage(ctx context.Context, id string, role domain.Role, content string, attachmentIDs []string) error
	UpdateLastMessage(ctx context.Context, id, content string) error
	UpdateConversationTitle(ctx context.Context, id, title string) error
	RemoveEmptyAssistantMessage(ctx context.Context, id string) (bool, error)
}

// AttachmentSource resolves attachment ids to stored bytes.
type AttachmentSource interface {
	GetAttachments(ctx context.Context, ids []string) ([]domain.Attachment, error)
}

// ProfileSource supplies the user profile for the system prompt.
type ProfileSource interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
}
