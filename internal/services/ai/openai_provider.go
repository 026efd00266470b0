// File: internal/services/ai/openai_provider.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const titlePromptTemplate = `Generate a very short (2-5 words) title for a conversation that starts with this exchange. Return ONLY the title, no quotes or punctuation at the end.

User: %s
Assistant: %s`

// titleExcerptLength bounds how much of each message the title prompt sees.
const titleExcerptLength = 200

// Logger defines the logging interface used by the AI provider
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// OpenAIProvider talks to the provider's OpenAI-compatible chat endpoint.
// The API key is read from the credential source on every call so a key
// saved in settings takes effect without a restart.
type OpenAIProvider struct {
	config      *Config
	credentials CredentialSource
	httpClient  *http.Client
	logger      Logger
}

func NewOpenAIProvider(config *Config, credentials CredentialSource, logger Logger) (*OpenAIProvider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}
	if credentials == nil {
		return nil, NewConfigError("credential source cannot be nil")
	}
	if logger == nil {
		return nil, NewConfigError("logger cannot be nil")
	}
	return &OpenAIProvider{config: config, credentials: credentials, logger: logger}, nil
}

// WithHTTPClient replaces the HTTP client used for every request.
func (p *OpenAIProvider) WithHTTPClient(c *http.Client) *OpenAIProvider {
	p.httpClient = c
	return p
}

func (p *OpenAIProvider) StreamChat(ctx context.Context, req ChatRequest, onToken func(token string) error) (string, error) {
	const op = "stream"

	apiKey, err := p.apiKey(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	client := p.client(apiKey)
	request := openai.ChatCompletionRequest{
		Model:     p.config.Model,
		Messages:  toOpenAIMessages(req),
		MaxTokens: p.config.MaxTokens,
		Stream:    true,
	}

	var stream *openai.ChatCompletionStream
	err = RetryWithBackoff(ctx, p.retryConfig(), func(ctx context.Context) error {
		s, err := client.CreateChatCompletionStream(ctx, request)
		if err != nil {
			return classifyError(op, p.config.Model, err)
		}
		stream = s
		return nil
	})
	if err != nil {
		return "", classifyError(op, p.config.Model, err)
	}
	defer stream.Close()

	p.logger.Debug("stream opened", "model", p.config.Model, "messages", len(req.Messages))

	var full strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			p.logger.Debug("stream completed", "model", p.config.Model, "chars", full.Len())
			return full.String(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return full.String(), classifyError(op, p.config.Model, ctxErr)
			}
			return full.String(), classifyError(op, p.config.Model, err)
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		full.WriteString(delta)
		if onToken != nil {
			if cbErr := onToken(delta); cbErr != nil {
				return full.String(), cbErr
			}
		}
	}
}

func (p *OpenAIProvider) GenerateTitle(ctx context.Context, userMessage, assistantMessage string) (string, error) {
	const op = "title"

	apiKey, err := p.apiKey(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.TitleTimeout)
	defer cancel()

	prompt := fmt.Sprintf(titlePromptTemplate,
		truncateRunes(userMessage, titleExcerptLength),
		truncateRunes(assistantMessage, titleExcerptLength))

	client := p.client(apiKey)
	var resp openai.ChatCompletionResponse
	err = RetryWithBackoff(ctx, p.retryConfig(), func(ctx context.Context) error {
		r, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     p.config.Model,
			MaxTokens: p.config.TitleMaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return classifyError(op, p.config.Model, err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", classifyError(op, p.config.Model, err)
	}

	if len(resp.Choices) == 0 {
		return "", NewProviderError(op, "empty title response", nil)
	}
	title := CleanTitle(resp.Choices[0].Message.Content, p.config.TitleMaxLength)
	if title == "" {
		return "", NewProviderError(op, "empty title response", nil)
	}
	return title, nil
}

// ValidateAPIKey sends a tiny completion with apiKey. Any client error
// response other than rate limiting counts as a rejected key. The probe is
// never retried.
func (p *OpenAIProvider) ValidateAPIKey(ctx context.Context, apiKey string) error {
	const op = "validate"

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return NewValidationError(op, "API key is empty", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.ValidationTimeout)
	defer cancel()

	_, err := p.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.config.Model,
		MaxTokens: p.config.ValidationMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hi"},
		},
	})
	if err == nil {
		return nil
	}

	aiErr := classifyError(op, p.config.Model, err)
	if aiErr.Code >= 400 && aiErr.Code < 500 && aiErr.Code != http.StatusTooManyRequests {
		aiErr.Type = ErrTypeValidation
		aiErr.Message = "API key was rejected: " + aiErr.Message
	}
	p.logger.Warn("API key validation failed", "type", aiErr.Type, "status", aiErr.Code)
	return aiErr
}

// ===== HELPERS =====

func (p *OpenAIProvider) apiKey(ctx context.Context) (string, error) {
	key, err := p.credentials.GetAPIKey(ctx)
	if err != nil {
		return "", &AIError{Type: ErrTypeConfig, Operation: "config", Message: "failed to read API key", Cause: err}
	}
	if strings.TrimSpace(key) == "" {
		return "", NewConfigError("No API key configured")
	}
	return key, nil
}

func (p *OpenAIProvider) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(p.config.BaseURL, "/")
	if p.httpClient != nil {
		cfg.HTTPClient = p.httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (p *OpenAIProvider) retryConfig() *RetryConfig {
	return &RetryConfig{MaxAttempts: p.config.MaxRetries, Delay: p.config.RetryDelay}
}

func toOpenAIMessages(req ChatRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{Role: string(m.Role)}
		switch c := m.Content.(type) {
		case PlainText:
			msg.Content = string(c)
		case ContentParts:
			msg.MultiContent = toOpenAIParts(c)
		}
		messages = append(messages, msg)
	}
	return messages
}

func toOpenAIParts(parts ContentParts) []openai.ChatMessagePart {
	out := make([]openai.ChatMessagePart, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case ContentPartImage:
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:" + part.MediaType + ";base64," + part.Data,
				},
			})
		default:
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		}
	}
	return out
}

// CleanTitle keeps the first line of a generated title, strips quotes and
// trailing punctuation, and caps it at maxRunes.
func CleanTitle(raw string, maxRunes int) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexAny(title, "\r\n"); i >= 0 {
		title = title[:i]
	}
	title = strings.Trim(title, "\"'`“”‘’ ")
	title = strings.TrimRight(title, ".!?;:, ")
	return strings.TrimSpace(truncateRunes(title, maxRunes))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// compile-time check
var _ ChatProvider = (*OpenAIProvider)(nil)
