// File: internal/domain/conversation.go
package domain

import "time"

// DefaultConversationTitle is the placeholder title a conversation carries
// until one is derived from the first user message or generated.
const DefaultConversationTitle = "New conversation"

// Conversation is a persisted chat thread. Content holds the serialized
// conversation document; the message list is always derived from it.
type Conversation struct {
	ID      string    `json:"id" gorm:"primaryKey;size:64"`
	Title   string    `json:"title" gorm:"not null"`
	Created time.Time `json:"created" gorm:"not null;index"`
	Updated time.Time `json:"updated" gorm:"not null;index"`
	Content string    `json:"content" gorm:"type:text;not null"`
}

// HasDefaultTitle reports whether the title is still the placeholder.
func (c *Conversation) HasDefaultTitle() bool {
	return c.Title == DefaultConversationTitle
}
