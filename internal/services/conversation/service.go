// File: internal/services/conversation/service.go
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iyunix/go-tilde/internal/document"
	"github.com/iyunix/go-tilde/internal/domain"
	convrepo "github.com/iyunix/go-tilde/internal/repository/conversation"
)

// Service is the only reader and writer of conversation documents. Every
// mutation is a read-modify-write cycle serialized per conversation id.
type Service struct {
	repo   convrepo.ConversationRepository
	codec  *document.Codec
	locks  *keyedMutex
	config *Config
	logger Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

// WithClock replaces the wall clock used for timestamps and time parsing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the zone message times are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.codec.Location = loc
	}
}

// WithIDGenerator replaces uuid-based id allocation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

func NewService(repo convrepo.ConversationRepository, cfg *Config, logger Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("conversation repository cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation config: %w", err)
	}

	s := &Service{
		repo:   repo,
		codec:  document.New(),
		locks:  newKeyedMutex(),
		config: cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codec.Now = s.now
	return s, nil
}

// CreateConversation allocates a conversation holding an empty document.
// A blank title falls back to the default placeholder.
func (s *Service) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	if err := s.validateTitle("CreateConversation", title); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	now := s.now()
	id := s.newID()
	conv := &domain.Conversation{
		ID:      id,
		Title:   title,
		Created: now,
		Updated: now,
		Content: s.codec.SerializeDocument(document.Frontmatter{
			ID:      id,
			Title:   title,
			Created: now,
			Updated: now,
		}, nil),
	}

	if err := s.repo.Create(ctx, conv); err != nil {
		s.logger.Error("failed to create conversation", "conversation_id", id, "error", err)
		return nil, NewStorageError("CreateConversation", id, err)
	}

	s.logger.Info("conversation created", "conversation_id", id)
	return conv, nil
}

func (s *Service) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("GetConversation", "conversation id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapFindError("GetConversation", id, err)
	}
	return conv, nil
}

// GetConversationWithMessages returns a conversation and its decoded
// messages from a single read, so both reflect the same stored document.
func (s *Service) GetConversationWithMessages(ctx context.Context, id string) (*domain.Conversation, []domain.Message, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil, NewValidationError("GetConversationWithMessages", "conversation id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	return s.load(ctx, "GetConversationWithMessages", id)
}

// GetAllConversations lists every conversation, most recently updated first.
func (s *Service) GetAllConversations(ctx context.Context) ([]domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	convs, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		return nil, NewStorageError("GetAllConversations", "", err)
	}
	return convs, nil
}

// GetRecentConversations lists the most recently updated conversations. A
// non-positive limit uses the configured default.
func (s *Service) GetRecentConversations(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = s.config.RecentLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	convs, err := s.repo.FindRecent(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list recent conversations", "limit", limit, "error", err)
		return nil, NewStorageError("GetRecentConversations", "", err)
	}
	return convs, nil
}

// SearchConversations matches titles case-insensitively. A blank query
// behaves like GetAllConversations.
func (s *Service) SearchConversations(ctx context.Context, query string, limit int) ([]domain.Conversation, error) {
	if strings.TrimSpace(query) == "" {
		return s.GetAllConversations(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	convs, err := s.repo.SearchByTitle(ctx, query, limit)
	if err != nil {
		s.logger.Error("failed to search conversations", "error", err)
		return nil, NewStorageError("SearchConversations", "", err)
	}
	return convs, nil
}

// GetMessages decodes a conversation's messages. A missing conversation is
// an empty one.
func (s *Service) GetMessages(ctx context.Context, id string) ([]domain.Message, error) {
	if strings.TrimSpace(id) == "" {
		return []domain.Message{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	_, messages, err := s.load(ctx, "GetMessages", id)
	if IsNotFound(err) {
		return []domain.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage appends a message stamped with the current time. The first
// user message replaces the default title with one derived from its content.
// Adding to a missing conversation is a logged no-op.
func (s *Service) AddMessage(ctx context.Context, id string, role domain.Role, content string, attachmentIDs []string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("AddMessage", "conversation id is required")
	}
	if !role.IsValid() {
		return NewValidationError("AddMessage", fmt.Sprintf("invalid role %q", role))
	}
	if document.HasSectionHeader(content) {
		s.logger.Warn("message content contains a section header line", "conversation_id", id, "role", role)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	conv, messages, err := s.load(ctx, "AddMessage", id)
	if IsNotFound(err) {
		s.logger.Warn("message for missing conversation dropped", "conversation_id", id, "role", role)
		return nil
	}
	if err != nil {
		return err
	}

	var ids []string
	if len(attachmentIDs) > 0 {
		ids = append([]string(nil), attachmentIDs...)
	}
	messages = append(messages, domain.Message{
		Role:          role,
		Content:       content,
		Timestamp:     s.now(),
		AttachmentIDs: ids,
	})

	title := conv.Title
	if conv.HasDefaultTitle() && role == domain.RoleUser {
		if derived := DeriveTitle(content, s.config.TitleMaxLength); derived != "" {
			title = derived
		}
	}

	if err := s.store(ctx, "AddMessage", conv, title, messages); err != nil {
		return err
	}

	s.logger.Debug("message added", "conversation_id", id, "role", role, "message_count", len(messages))
	return nil
}

// UpdateLastMessage replaces the content of the final message only. It is a
// no-op for missing or empty conversations.
func (s *Service) UpdateLastMessage(ctx context.Context, id, content string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("UpdateLastMessage", "conversation id is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	conv, messages, err := s.load(ctx, "UpdateLastMessage", id)
	if IsNotFound(err) {
		s.logger.Warn("last message update for missing conversation dropped", "conversation_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		s.logger.Debug("last message update on empty conversation ignored", "conversation_id", id)
		return nil
	}

	messages[len(messages)-1].Content = content
	return s.store(ctx, "UpdateLastMessage", conv, conv.Title, messages)
}

// RemoveEmptyAssistantMessage drops the final message when it is an
// assistant turn with no content. It reports whether a message was removed.
func (s *Service) RemoveEmptyAssistantMessage(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, NewValidationError("RemoveEmptyAssistantMessage", "conversation id is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	conv, messages, err := s.load(ctx, "RemoveEmptyAssistantMessage", id)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(messages) == 0 {
		return false, nil
	}
	last := messages[len(messages)-1]
	if last.Role != domain.RoleAssistant || strings.TrimSpace(last.Content) != "" {
		return false, nil
	}

	if err := s.store(ctx, "RemoveEmptyAssistantMessage", conv, conv.Title, messages[:len(messages)-1]); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateConversationTitle sets the title in both the row and the document
// frontmatter.
func (s *Service) UpdateConversationTitle(ctx context.Context, id, title string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("UpdateConversationTitle", "conversation id is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return NewValidationError("UpdateConversationTitle", "title cannot be empty")
	}
	if err := s.validateTitle("UpdateConversationTitle", title); err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	conv, messages, err := s.load(ctx, "UpdateConversationTitle", id)
	if err != nil {
		return err
	}

	if err := s.store(ctx, "UpdateConversationTitle", conv, title, messages); err != nil {
		return err
	}

	s.logger.Info("conversation title updated", "conversation_id", id)
	return nil
}

// DeleteConversation removes the conversation and its attachments in one
// transaction. Deleting a missing conversation succeeds.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("DeleteConversation", "conversation id is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	err := s.repo.DeleteWithAttachments(ctx, id)
	if errors.Is(err, convrepo.ErrConversationNotFound) {
		s.logger.Debug("delete of missing conversation ignored", "conversation_id", id)
		return nil
	}
	if err != nil {
		s.logger.Error("failed to delete conversation", "conversation_id", id, "error", err)
		return NewStorageError("DeleteConversation", id, err)
	}

	s.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// ===== HELPERS =====

func (s *Service) load(ctx context.Context, operation, id string) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, s.mapFindError(operation, id, err)
	}
	return conv, s.codec.Parse(conv.Content), nil
}

// store re-serializes messages under title and bumps updated. The created
// timestamp is carried over from the row.
func (s *Service) store(ctx context.Context, operation string, conv *domain.Conversation, title string, messages []domain.Message) error {
	now := s.now()
	conv.Title = title
	conv.Updated = now
	conv.Content = s.codec.SerializeDocument(document.Frontmatter{
		ID:      conv.ID,
		Title:   title,
		Created: conv.Created,
		Updated: now,
	}, messages)

	if err := s.repo.Update(ctx, conv); err != nil {
		if errors.Is(err, convrepo.ErrConversationNotFound) {
			return NewNotFoundError(operation, conv.ID)
		}
		s.logger.Error("failed to save conversation", "operation", operation, "conversation_id", conv.ID, "error", err)
		return NewStorageError(operation, conv.ID, err)
	}
	return nil
}

func (s *Service) mapFindError(operation, id string, err error) error {
	if errors.Is(err, convrepo.ErrConversationNotFound) {
		return NewNotFoundError(operation, id)
	}
	s.logger.Error("failed to load conversation", "operation", operation, "conversation_id", id, "error", err)
	return NewStorageError(operation, id, err)
}

func (s *Service) validateTitle(operation, title string) error {
	if n := len([]rune(title)); n > s.config.MaxTitleLength {
		return NewValidationError(operation, fmt.Sprintf("title must be %d characters or less", s.config.MaxTitleLength))
	}
	return nil
}
