// File: internal/services/chat/streaming.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iyunix/go-tilde/internal/domain"
	"github.com/iyunix/go-tilde/internal/services/ai"
	"github.com/iyunix/go-tilde/internal/services/conversation"
)

// Coordinator runs chat turns: it persists the user message and an empty
// assistant placeholder, streams the reply, and fills the placeholder once
// the stream completes. Storage is written at most twice per turn and never
// per token.
type Coordinator struct {
	conversations ConversationStore
	history       *HistoryBuilder
	profiles      ProfileSource
	provider      ai.ChatProvider
	config        *Config
	logger        Logger
	inflight      *inflight
	titles        sync.WaitGroup
	now           func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the time source used for in-memory message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(
	conversations ConversationStore,
	attachments AttachmentSource,
	profiles ProfileSource,
	provider ai.ChatProvider,
	cfg *Config,
	logger Logger,
	opts ...Option,
) (*Coordinator, error) {
	if conversations == nil {
		return nil, fmt.Errorf("conversation store cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("chat provider cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}

	c := &Coordinator{
		conversations: conversations,
		history:       NewHistoryBuilder(attachments, cfg.AttachmentConcurrency),
		profiles:      profiles,
		provider:      provider,
		config:        cfg,
		logger:        logger,
		inflight:      newInflight(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send runs one turn against session. Cancelling ctx, or calling Cancel for
// the conversation, stops the stream quietly: the result is marked Canceled,
// no error is returned and the persisted placeholder is left as is.
func (c *Coordinator) Send(ctx context.Context, session *Session, req SendRequest, obs Observer) (*Result, error) {
	if session == nil {
		return nil, NewValidationError("Send", "session is required")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.AttachmentIDs) == 0 {
		return nil, NewValidationError("Send", "message is empty")
	}

	// Writes outlive a disconnecting caller; only the stream is tied to ctx.
	persistCtx := context.WithoutCancel(ctx)

	conv, err := c.ensureConversation(persistCtx, session)
	if err != nil {
		return nil, err
	}
	convID := conv.ID

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !c.inflight.begin(convID, cancel) {
		return nil, NewBusyError(convID)
	}
	defer c.inflight.end(convID)

	if obs.OnConversation != nil {
		obs.OnConversation(conv)
	}

	firstExchange := len(session.Messages()) == 0
	result := &Result{ConversationID: convID}

	if err := c.persist(persistCtx, convID, domain.RoleUser, content, req.AttachmentIDs); err != nil {
		return nil, err
	}
	session.append(domain.Message{
		Role:          domain.RoleUser,
		Content:       content,
		Timestamp:     c.now(),
		AttachmentIDs: req.AttachmentIDs,
	})

	history, err := c.history.Build(streamCtx, session.Messages())
	if err != nil {
		if streamCtx.Err() != nil {
			result.Canceled = true
			return result, nil
		}
		c.logger.Error("failed to build chat history", "conversation_id", convID, "error", err)
		return nil, NewStorageError("Send", convID, err)
	}

	if err := c.persist(persistCtx, convID, domain.RoleAssistant, "", nil); err != nil {
		return nil, err
	}
	session.append(domain.Message{Role: domain.RoleAssistant, Timestamp: c.now()})

	request := ai.ChatRequest{
		System:   BuildSystemPrompt(c.profile(persistCtx)),
		Messages: history,
	}

	c.logger.Info("streaming response", "conversation_id", convID, "history_length", len(history))

	var reply strings.Builder
	_, err = c.provider.StreamChat(streamCtx, request, func(token string) error {
		reply.WriteString(token)
		if obs.OnToken != nil {
			obs.OnToken(token)
		}
		return nil
	})
	result.Text = reply.String()

	if err != nil {
		if isCancellation(streamCtx, err) {
			c.logger.Info("stream canceled", "conversation_id", convID, "chars", reply.Len())
			result.Canceled = true
			return result, nil
		}
		return result, c.fail(persistCtx, session, convID, obs, err)
	}

	session.fillPlaceholder(result.Text)
	if err := c.conversations.UpdateLastMessage(persistCtx, convID, result.Text); err != nil {
		c.logger.Error("failed to save assistant reply", "conversation_id", convID, "error", err)
		chatErr := NewStorageError("Send", convID, err)
		if obs.OnError != nil {
			obs.OnError(chatErr)
		}
		return result, chatErr
	}

	if obs.OnComplete != nil {
		obs.OnComplete(result.Text)
	}
	c.logger.Info("stream completed", "conversation_id", convID, "chars", reply.Len())

	if firstExchange {
		c.generateTitle(persistCtx, convID, content, result.Text)
	}
	return result, nil
}

// Cancel stops the in-flight stream for conversationID. It reports whether
// one was running.
func (c *Coordinator) Cancel(conversationID string) bool {
	canceled := c.inflight.cancel(conversationID)
	if canceled {
		c.logger.Debug("cancel requested", "conversation_id", conversationID)
	}
	return canceled
}

// IsStreaming reports whether a turn is in flight for conversationID.
func (c *Coordinator) IsStreaming(conversationID string) bool {
	return c.inflight.active(conversationID)
}

// Wait blocks until background title generation has finished.
func (c *Coordinator) Wait() {
	c.titles.Wait()
}

// ===== HELPERS =====

// ensureConversation returns the session's conversation, creating one when
// the session has none or its conversation no longer exists.
func (c *Coordinator) ensureConversation(ctx context.Context, session *Session) (*domain.Conversation, error) {
	if id := session.ConversationID(); id != "" {
		conv, err := c.conversations.GetConversation(ctx, id)
		if err == nil {
			return conv, nil
		}
		if !conversation.IsNotFound(err) {
			return nil, NewStorageError("Send", id, err)
		}
		c.logger.Warn("conversation not found, starting a new one", "conversation_id", id)
	}

	conv, err := c.conversations.CreateConversation(ctx, "")
	if err != nil {
		c.logger.Error("failed to create conversation", "error", err)
		return nil, NewStorageError("Send", "", err)
	}
	session.reset(conv.ID)
	return conv, nil
}

func (c *Coordinator) persist(ctx context.Context, convID string, role domain.Role, content string, attachmentIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.StorageTimeout)
	defer cancel()

	if err := c.conversations.AddMessage(ctx, convID, role, content, attachmentIDs); err != nil {
		c.logger.Error("failed to save message", "conversation_id", convID, "role", role, "error", err)
		return NewStorageError("Send", convID, err)
	}
	return nil
}

func (c *Coordinator) profile(ctx context.Context) *domain.Profile {
	if c.profiles == nil {
		return nil
	}
	profile, err := c.profiles.GetProfile(ctx)
	if err != nil {
		c.logger.Warn("profile unavailable, using default system prompt", "error", err)
		return nil
	}
	return profile
}

// fail drops the placeholder from the in-memory view and reports err. The
// persisted placeholder is only removed when configured to.
func (c *Coordinator) fail(ctx context.Context, session *Session, convID string, obs Observer, err error) error {
	c.logger.Error("stream failed", "conversation_id", convID, "error", err)
	session.dropPlaceholder()

	if c.config.DeletePlaceholderOnError {
		ctx, cancel := context.WithTimeout(ctx, c.config.StorageTimeout)
		defer cancel()
		if _, rmErr := c.conversations.RemoveEmptyAssistantMessage(ctx, convID); rmErr != nil {
			c.logger.Warn("failed to remove placeholder", "conversation_id", convID, "error", rmErr)
		}
	}

	chatErr := NewStreamingError(convID, err)
	if obs.OnError != nil {
		obs.OnError(chatErr)
	}
	return chatErr
}

// generateTitle replaces the derived title with a generated one in the
// background. Failures keep the derived title.
func (c *Coordinator) generateTitle(ctx context.Context, convID, userContent, reply string) {
	c.titles.Add(1)
	go func() {
		defer c.titles.Done()

		ctx, cancel := context.WithTimeout(ctx, c.config.TitleTimeout)
		defer cancel()

		title, err := c.provider.GenerateTitle(ctx, userContent, reply)
		if err != nil {
			c.logger.Warn("title generation failed, keeping derived title", "conversation_id", convID, "error", err)
			return
		}
		if err := c.conversations.UpdateConversationTitle(ctx, convID, title); err != nil {
			c.logger.Warn("failed to save generated title", "conversation_id", convID, "error", err)
		}
	}()
}

func isCancellation(ctx context.Context, err error) bool {
	if ai.IsCanceled(err) || errors.Is(err, context.Canceled) {
		return true
	}
	return errors.Is(ctx.Err(), context.Canceled)
}
