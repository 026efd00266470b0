// File: internal/services/ai/interface.go
package ai

import (
	"context"

	"github.com/iyunix/go-tilde/internal/domain"
)

// ContentPartType tags a block of a multi-part message.
type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image"
)

// ContentPart is a text block or a base64 encoded image block.
type ContentPart struct {
	Type      ContentPartType
	Text      string
	MediaType string // image parts only
	Data      string // base64 without a data URI prefix
}

// Content is the body of an outbound message: PlainText or ContentParts.
type Content interface {
	isContent()
}

// PlainText is the bare text form of a message body.
type PlainText string

// ContentParts is the typed block form of a message body.
type ContentParts []ContentPart

func (PlainText) isContent()    {}
func (ContentParts) isContent() {}

// NormalizeContent picks the wire form for parts: a single text part is sent
// as PlainText, anything else as ContentParts.
func NormalizeContent(parts []ContentPart) Content {
	if len(parts) == 1 && parts[0].Type == ContentPartText {
		return PlainText(parts[0].Text)
	}
	out := make(ContentParts, len(parts))
	copy(out, parts)
	return out
}

// ChatMessage is one role-tagged turn of the outbound history.
type ChatMessage struct {
	Role    domain.Role
	Content Content
}

// ChatRequest is a streaming completion request.
type ChatRequest struct {
	System   string
	Messages []ChatMessage
}

// CredentialSource supplies the API key at call time.
type CredentialSource interface {
	GetAPIKey(ctx context.Context) (string, error)
}

// StaticCredentials is a fixed API key.
type StaticCredentials string

func (s StaticCredentials) GetAPIKey(context.Context) (string, error) {
	return string(s), nil
}

// ChatProvider is the chat completion transport.
type ChatProvider interface {
	// StreamChat delivers tokens to onToken in order and returns the full
	// text on completion. A non-nil error from onToken stops the stream.
	// Cancelling ctx yields an error for which IsCanceled is true.
	StreamChat(ctx context.Context, req ChatRequest, onToken func(token string) error) (string, error)

	// GenerateTitle returns a short title for an opening exchange.
	GenerateTitle(ctx context.Context, userMessage, assistantMessage string) (string, error)

	// ValidateAPIKey performs a minimal round trip with apiKey. A refused
	// key yields an error for which IsValidation is true.
	ValidateAPIKey(ctx context.Context, apiKey string) error
}
