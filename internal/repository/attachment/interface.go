// File: internal/repository/attachment/interface.go
package attachment

import (
	"context"

	"github.com/iyunix/go-tilde/internal/domain"
)

// AttachmentRepository handles attachment row operations.
type AttachmentRepository interface {
	Create(ctx context.Context, att *domain.Attachment) error
	FindByID(ctx context.Context, id string) (*domain.Attachment, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.Attachment, error)
	FindByConversationID(ctx context.Context, conversationID string) ([]domain.Attachment, error)
	CountByConversationID(ctx context.Context, conversationID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByConversationID(ctx context.Context, conversationID string) (int64, error)
}
