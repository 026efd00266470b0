// File: internal/repository/conversation/conversation_repository.go
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/iyunix/go-tilde/internal/domain"
)

var ErrConversationNotFound = errors.New("conversation not found")

const (
	maxListLimit   = 1000
	maxTitleLength = 200
)

// listOrder keeps the most recently active conversation first.
const listOrder = "updated DESC, created DESC, id DESC"

type gormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// Create inserts a new conversation row.
func (r *gormConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if err := validateConversationInput(conv); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	normalizeTimes(conv)
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("database error creating conversation: %w", err)
	}
	return nil
}

// FindByID loads a single conversation.
func (r *gormConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	if id == "" {
		return nil, errors.New("invalid conversation ID")
	}

	var conv domain.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	return handleFindError(err, &conv, "FindByID")
}

// FindAll returns every conversation, most recently updated first.
func (r *gormConversationRepository) FindAll(ctx context.Context) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	if err := r.db.WithContext(ctx).Order(listOrder).Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("database error fetching conversations: %w", err)
	}
	return convs, nil
}

// FindRecent returns at most limit conversations, most recently updated first.
func (r *gormConversationRepository) FindRecent(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("invalid limit: must be between 1 and %d", maxListLimit)
	}

	var convs []domain.Conversation
	err := r.db.WithContext(ctx).
		Order(listOrder).
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("database error finding recent conversations: %w", err)
	}
	return convs, nil
}

// SearchByTitle matches titles case-insensitively. A limit of zero or less
// returns every match.
func (r *gormConversationRepository) SearchByTitle(ctx context.Context, query string, limit int) ([]domain.Conversation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	tx := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(query))+"%").
		Order(listOrder)
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var convs []domain.Conversation
	if err := tx.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("database error searching conversations: %w", err)
	}
	return convs, nil
}

// Update writes title, content and updated for an existing conversation.
// The created timestamp is never touched.
func (r *gormConversationRepository) Update(ctx context.Context, conv *domain.Conversation) error {
	if err := validateConversationInput(conv); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	normalizeTimes(conv)
	result := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"title":   conv.Title,
			"content": conv.Content,
			"updated": conv.Updated,
		})
	if result.Error != nil {
		return fmt.Errorf("database error updating conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ExistsByID checks existence without loading the document.
func (r *gormConversationRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("invalid conversation ID")
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error checking conversation existence: %w", err)
	}
	return count > 0, nil
}

// Count returns the number of stored conversations.
func (r *gormConversationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("database error counting conversations: %w", err)
	}
	return count, nil
}

// DeleteWithAttachments removes attachments first so a failure part way
// never leaves attachments pointing at a deleted conversation.
func (r *gormConversationRepository) DeleteWithAttachments(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid conversation ID")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Attachment{}).Error; err != nil {
			return fmt.Errorf("database error deleting attachments: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&domain.Conversation{})
		if result.Error != nil {
			return fmt.Errorf("database error deleting conversation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
}

// ===== HELPERS =====

func validateConversationInput(conv *domain.Conversation) error {
	if conv == nil {
		return errors.New("conversation cannot be nil")
	}
	if conv.ID == "" {
		return errors.New("conversation ID is required")
	}
	if len([]rune(conv.Title)) > maxTitleLength {
		return fmt.Errorf("title must be %d characters or less", maxTitleLength)
	}
	if conv.Created.IsZero() || conv.Updated.IsZero() {
		return errors.New("created and updated timestamps are required")
	}
	return nil
}

// normalizeTimes stores timestamps in UTC so text ordering in SQLite
// matches chronological ordering.
func normalizeTimes(conv *domain.Conversation) {
	conv.Created = conv.Created.UTC()
	conv.Updated = conv.Updated.UTC()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func handleFindError(err error, conv *domain.Conversation, operation string) (*domain.Conversation, error) {
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	return nil, fmt.Errorf("%s: database query failed: %w", operation, err)
}
