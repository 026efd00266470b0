// File: internal/services/chat/context.go
package chat

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/iyunix/go-tilde/internal/domain"
	"github.com/iyunix/go-tilde/internal/services/ai"
	"github.com/iyunix/go-tilde/internal/services/attachment"
)

// HistoryBuilder turns persisted messages into the outbound request history.
type HistoryBuilder struct {
	attachments AttachmentSource
	concurrency int
}

func NewHistoryBuilder(attachments AttachmentSource, concurrency int) *HistoryBuilder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HistoryBuilder{attachments: attachments, concurrency: concurrency}
}

// Build walks messages in order. Image attachments become base64 image parts
// ahead of the text; other attachment kinds are not sent. Messages that end
// up with no parts, such as an earlier empty placeholder, are skipped.
func (b *HistoryBuilder) Build(ctx context.Context, messages []domain.Message) ([]ai.ChatMessage, error) {
	resolved, err := b.resolve(ctx, messages)
	if err != nil {
		return nil, err
	}

	history := make([]ai.ChatMessage, 0, len(messages))
	for i, msg := range messages {
		parts := make([]ai.ContentPart, 0, len(resolved[i])+1)
		for _, att := range resolved[i] {
			if att.Type != domain.AttachmentTypeImage {
				continue
			}
			parts = append(parts, ai.ContentPart{
				Type:      ai.ContentPartImage,
				MediaType: att.MimeType,
				Data:      attachment.FileToBase64(att.Blob),
			})
		}
		if msg.Content != "" {
			parts = append(parts, ai.ContentPart{Type: ai.ContentPartText, Text: msg.Content})
		}
		if len(parts) == 0 {
			continue
		}
		history = append(history, ai.ChatMessage{Role: msg.Role, Content: ai.NormalizeContent(parts)})
	}
	return history, nil
}

// resolve loads each message's attachments concurrently. Result slots line
// up with messages.
func (b *HistoryBuilder) resolve(ctx context.Context, messages []domain.Message) ([][]domain.Attachment, error) {
	resolved := make([][]domain.Attachment, len(messages))
	if b.attachments == nil {
		return resolved, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, msg := range messages {
		if len(msg.AttachmentIDs) == 0 {
			continue
		}
		ids := msg.AttachmentIDs
		g.Go(func() error {
			atts, err := b.attachments.GetAttachments(gctx, ids)
			if err != nil {
				return err
			}
			resolved[i] = atts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}
