// File: internal/services/chat/types.go
package chat

import (
	"sync"

	"github.com/iyunix/go-tilde/internal/domain"
)

// Logger defines the logging interface used across chat services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// SendRequest is one user turn.
type SendRequest struct {
	Content       string
	AttachmentIDs []string
}

// Result describes how a turn ended. Canceled turns carry whatever text
// arrived before the stop and are not errors.
type Result struct {
	ConversationID string
	Text           string
	Canceled       bool
}

// Observer receives live updates for one turn. Any callback may be nil.
// OnError never fires for a cancellation.
type Observer struct {
	OnConversation func(conv *domain.Conversation)
	OnToken        func(token string)
	OnComplete     func(fullText string)
	OnError        func(err error)
}

// Session is the in-memory view of a conversation held by the caller. It
// mirrors persisted messages except that a failed turn's placeholder is
// dropped here first.
type Session struct {
	mu             sync.Mutex
	conversationID string
	messages       []domain.Message
}

// NewSession starts a view. An empty conversationID means the conversation
// is created on the first send.
func NewSession(conversationID string, messages []domain.Message) *Session {
	return &Session{
		conversationID: conversationID,
		messages:       append([]domain.Message(nil), messages...),
	}
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a copy of the current view.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

func (s *Session) append(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// fillPlaceholder sets the content of the trailing assistant message.
func (s *Session) fillPlaceholder(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == domain.RoleAssistant {
		s.messages[n-1].Content = content
	}
}

// dropPlaceholder removes the trailing assistant message if it is still empty.
func (s *Session) dropPlaceholder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == domain.RoleAssistant && s.messages[n-1].Content == "" {
		s.messages = s.messages[:n-1]
	}
}

// reset points the view at a new, empty conversation.
func (s *Session) reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
	s.messages = nil
}
