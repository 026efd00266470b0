// File: internal/dtos/api.go
package dtos

import (
	"time"

	"github.com/iyunix/go-tilde/internal/domain"
)

// ConversationSummaryDTO is a conversation without its document body, as
// shown in the sidebar and search results.
type ConversationSummaryDTO struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// ConversationDTO is a conversation with its derived messages.
type ConversationDTO struct {
	ConversationSummaryDTO
	Messages []MessageDTO `json:"messages"`
}

// MessageDTO is one turn of a conversation.
type MessageDTO struct {
	Role          string   `json:"role"`
	Content       string   `json:"content"`
	Timestamp     string   `json:"timestamp"`
	AttachmentIDs []string `json:"attachmentIds,omitempty"`
}

// AttachmentDTO exposes attachment metadata plus short-lived display URLs.
type AttachmentDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	MessageIndex   int    `json:"messageIndex"`
	Type           string `json:"type"`
	MimeType       string `json:"mimeType"`
	Filename       string `json:"filename"`
	Size           int    `json:"size"`
	URL            string `json:"url,omitempty"`
	ThumbnailURL   string `json:"thumbnailUrl,omitempty"`
	Created        string `json:"created"`
}

// SettingsDTO never carries the API key itself.
type SettingsDTO struct {
	Theme          string `json:"theme"`
	Haptics        bool   `json:"haptics"`
	AppIcon        string `json:"appIcon"`
	HasSeenWelcome bool   `json:"hasSeenWelcome"`
	HasAPIKey      bool   `json:"hasApiKey"`
}

// ProfileDTO is the user's profile.
type ProfileDTO struct {
	Name    string `json:"name"`
	Context string `json:"context"`
}

// CreateConversationRequestDTO may carry an explicit title.
type CreateConversationRequestDTO struct {
	Title string `json:"title"`
}

// RenameConversationRequestDTO sets a conversation title.
type RenameConversationRequestDTO struct {
	Title string `json:"title"`
}

// ChatStreamRequestDTO starts one turn. An empty ConversationID starts a
// new conversation.
type ChatStreamRequestDTO struct {
	ConversationID string   `json:"conversationId"`
	Content        string   `json:"content"`
	AttachmentIDs  []string `json:"attachmentIds"`
}

// ProfileUpdateRequestDTO replaces the profile.
type ProfileUpdateRequestDTO struct {
	Name    string `json:"name"`
	Context string `json:"context"`
}

// CredentialsRequestDTO saves the API key together with the profile.
type CredentialsRequestDTO struct {
	APIKey  string `json:"apiKey"`
	Name    string `json:"name"`
	Context string `json:"context"`
}

// OnboardingRequestDTO is the welcome flow payload.
type OnboardingRequestDTO struct {
	Name     string   `json:"name"`
	Purposes []string `json:"purposes"`
	Style    string   `json:"style"`
	APIKey   string   `json:"apiKey"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Mapping Functions

// FromConversation maps a conversation to its summary.
func FromConversation(conv domain.Conversation) ConversationSummaryDTO {
	return ConversationSummaryDTO{
		ID:      conv.ID,
		Title:   conv.Title,
		Created: formatTime(conv.Created),
		Updated: formatTime(conv.Updated),
	}
}

// FromConversations maps a slice of conversations to summaries.
func FromConversations(convs []domain.Conversation) []ConversationSummaryDTO {
	dtos := make([]ConversationSummaryDTO, len(convs))
	for i, conv := range convs {
		dtos[i] = FromConversation(conv)
	}
	return dtos
}

// FromMessages maps messages, keeping order.
func FromMessages(messages []domain.Message) []MessageDTO {
	dtos := make([]MessageDTO, len(messages))
	for i, msg := range messages {
		dtos[i] = MessageDTO{
			Role:          string(msg.Role),
			Content:       msg.Content,
			Timestamp:     formatTime(msg.Timestamp),
			AttachmentIDs: msg.AttachmentIDs,
		}
	}
	return dtos
}

// FromAttachment maps attachment metadata; URLs are filled by the caller.
func FromAttachment(att domain.Attachment, url, thumbnailURL string) AttachmentDTO {
	return AttachmentDTO{
		ID:             att.ID,
		ConversationID: att.ConversationID,
		MessageIndex:   att.MessageIndex,
		Type:           string(att.Type),
		MimeType:       att.MimeType,
		Filename:       att.Filename,
		Size:           len(att.Blob),
		URL:            url,
		ThumbnailURL:   thumbnailURL,
		Created:        formatTime(att.Created),
	}
}

// FromSettings maps settings; hasAPIKey is resolved separately because the
// stored key may be sealed.
func FromSettings(s domain.Settings, hasAPIKey bool) SettingsDTO {
	return SettingsDTO{
		Theme:          string(s.Theme),
		Haptics:        s.Haptics,
		AppIcon:        s.AppIcon,
		HasSeenWelcome: s.HasSeenWelcome,
		HasAPIKey:      hasAPIKey,
	}
}

// FromProfile maps the profile.
func FromProfile(p domain.Profile) ProfileDTO {
	return ProfileDTO{Name: p.Name, Context: p.Context}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
