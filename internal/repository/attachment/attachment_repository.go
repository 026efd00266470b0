// File: internal/repository/attachment/attachment_repository.go
package attachment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/iyunix/go-tilde/internal/domain"
)

var ErrAttachmentNotFound = errors.New("attachment not found")

type gormAttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &gormAttachmentRepository{db: db}
}

// Create stores the blob, thumbnail and metadata in a single insert.
func (r *gormAttachmentRepository) Create(ctx context.Context, att *domain.Attachment) error {
	if err := validateAttachmentInput(att); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	att.Created = att.Created.UTC()
	if err := r.db.WithContext(ctx).Create(att).Error; err != nil {
		return fmt.Errorf("database error creating attachment: %w", err)
	}
	return nil
}

func (r *gormAttachmentRepository) FindByID(ctx context.Context, id string) (*domain.Attachment, error) {
	if id == "" {
		return nil, errors.New("invalid attachment ID")
	}

	var att domain.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&att).Error
	if err == nil {
		return &att, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttachmentNotFound
	}
	return nil, fmt.Errorf("FindByID: database query failed: %w", err)
}

// FindByIDs returns the attachments that exist, in the order of ids.
// Unknown ids are skipped.
func (r *gormAttachmentRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Attachment, error) {
	if len(ids) == 0 {
		return []domain.Attachment{}, nil
	}

	var found []domain.Attachment
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("database error fetching attachments: %w", err)
	}

	byID := make(map[string]domain.Attachment, len(found))
	for _, att := range found {
		byID[att.ID] = att
	}
	ordered := make([]domain.Attachment, 0, len(found))
	for _, id := range ids {
		if att, ok := byID[id]; ok {
			ordered = append(ordered, att)
		}
	}
	return ordered, nil
}

// FindByConversationID lists a conversation's attachments in message order.
func (r *gormAttachmentRepository) FindByConversationID(ctx context.Context, conversationID string) ([]domain.Attachment, error) {
	if conversationID == "" {
		return nil, errors.New("invalid conversation ID")
	}

	var atts []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("message_index ASC, created ASC, id ASC").
		Find(&atts).Error
	if err != nil {
		return nil, fmt.Errorf("database error fetching attachments for conversation: %w", err)
	}
	return atts, nil
}

func (r *gormAttachmentRepository) CountByConversationID(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("database error counting attachments: %w", err)
	}
	return count, nil
}

func (r *gormAttachmentRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid attachment ID")
	}

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Attachment{})
	if result.Error != nil {
		return fmt.Errorf("database error deleting attachment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}

// DeleteByConversationID removes every attachment of a conversation and
// reports how many rows went away.
func (r *gormAttachmentRepository) DeleteByConversationID(ctx context.Context, conversationID string) (int64, error) {
	if conversationID == "" {
		return 0, errors.New("invalid conversation ID")
	}

	result := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&domain.Attachment{})
	if result.Error != nil {
		return 0, fmt.Errorf("database error deleting attachments: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func validateAttachmentInput(att *domain.Attachment) error {
	if att == nil {
		return errors.New("attachment cannot be nil")
	}
	if att.ID == "" {
		return errors.New("attachment ID is required")
	}
	if att.ConversationID == "" {
		return errors.New("conversation ID is required")
	}
	if len(att.Blob) == 0 {
		return errors.New("attachment data is required")
	}
	if att.MimeType == "" {
		return errors.New("MIME type is required")
	}
	return nil
}
