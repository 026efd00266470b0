// File: internal/repository/conversation/interface.go
package conversation

import (
	"context"

	"github.com/iyunix/go-tilde/internal/domain"
)

// ConversationRepository handles conversation row operations. It knows
// nothing about the document format stored in Content.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindAll(ctx context.Context) ([]domain.Conversation, error)
	FindRecent(ctx context.Context, limit int) ([]domain.Conversation, error)
	SearchByTitle(ctx context.Context, query string, limit int) ([]domain.Conversation, error)
	Update(ctx context.Context, conv *domain.Conversation) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)

	// DeleteWithAttachments removes the conversation and every attachment
	// that references it in one transaction.
	DeleteWithAttachments(ctx context.Context, id string) error
}
