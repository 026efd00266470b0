package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-tilde/internal/domain"
	"github.com/iyunix/go-tilde/internal/services"
)

type capturedRequest struct {
	Authorization string
	Body          map[string]interface{}
}

func writeChunk(w http.ResponseWriter, content string) {
	chunk := map[string]interface{}{
		"id":      "chunk",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     "cmpl",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": msg, "type": "error"},
	})
}

func newTestProvider(t *testing.T, handler http.HandlerFunc, key string) (*OpenAIProvider, <-chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests <- capturedRequest{Authorization: r.Header.Get("Authorization"), Body: body}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL + "/v1/"
	cfg.Model = "test-model"
	cfg.RetryDelay = time.Millisecond

	provider, err := NewOpenAIProvider(cfg, StaticCredentials(key), &services.NoOpLogger{})
	require.NoError(t, err)
	return provider, requests
}

func streamHandler(tokens ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range tokens {
			writeChunk(w, tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestStreamChat_DeliversTokensInOrder(t *testing.T) {
	provider, requests := newTestProvider(t, streamHandler("Hel", "lo", ", world"), "sk-test")

	var got []string
	full, err := provider.StreamChat(context.Background(), ChatRequest{
		System: "You are tilde.",
		Messages: []ChatMessage{
			{Role: domain.RoleUser, Content: PlainText("Hi")},
		},
	}, func(token string) error {
		got = append(got, token)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", ", world"}, got)
	assert.Equal(t, "Hello, world", full)

	req := <-requests
	assert.Equal(t, "Bearer sk-test", req.Authorization)
	assert.Equal(t, "test-model", req.Body["model"])
	assert.Equal(t, true, req.Body["stream"])
	assert.EqualValues(t, 4096, req.Body["max_tokens"])

	msgs := req.Body["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "You are tilde.", msgs[0].(map[string]interface{})["content"])
	assert.Equal(t, "Hi", msgs[1].(map[string]interface{})["content"])
}

func TestStreamChat_MultimodalContent(t *testing.T) {
	provider, requests := newTestProvider(t, streamHandler("ok"), "sk-test")

	_, err := provider.StreamChat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{
			Role: domain.RoleUser,
			Content: ContentParts{
				{Type: ContentPartImage, MediaType: "image/png", Data: "aGVsbG8="},
				{Type: ContentPartText, Text: "What is this?"},
			},
		}},
	}, nil)
	require.NoError(t, err)

	req := <-requests
	msgs := req.Body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	parts := msgs[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, parts, 2)

	image := parts[0].(map[string]interface{})
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", image["image_url"].(map[string]interface{})["url"])

	text := parts[1].(map[string]interface{})
	assert.Equal(t, "text", text["type"])
	assert.Equal(t, "What is this?", text["text"])
}

func TestStreamChat_NoAPIKey(t *testing.T) {
	provider, requests := newTestProvider(t, streamHandler("x"), "")

	_, err := provider.StreamChat(context.Background(), ChatRequest{}, nil)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeConfig, aiErr.Type)
	assert.Empty(t, requests)
}

func TestStreamChat_RejectedKeyIsNotRetried(t *testing.T) {
	var calls int32
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeAPIError(w, http.StatusUnauthorized, "invalid x-api-key")
	}, "sk-bad")

	_, err := provider.StreamChat(context.Background(), ChatRequest{}, nil)

	assert.True(t, IsValidation(err))
	assert.False(t, IsCanceled(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStreamChat_RetriesServerErrors(t *testing.T) {
	var calls int32
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeAPIError(w, http.StatusServiceUnavailable, "overloaded")
			return
		}
		streamHandler("done")(w, r)
	}, "sk-test")

	full, err := provider.StreamChat(context.Background(), ChatRequest{}, nil)

	require.NoError(t, err)
	assert.Equal(t, "done", full)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestStreamChat_CancellationIsDistinct(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "first")
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}, "sk-test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tokens []string
	partial, err := provider.StreamChat(ctx, ChatRequest{}, func(token string) error {
		tokens = append(tokens, token)
		cancel()
		return nil
	})

	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Equal(t, []string{"first"}, tokens)
	assert.Equal(t, "first", partial)
}

func TestStreamChat_CallbackErrorStopsStream(t *testing.T) {
	provider, _ := newTestProvider(t, streamHandler("a", "b", "c"), "sk-test")
	stop := errors.New("client went away")

	var count int
	_, err := provider.StreamChat(context.Background(), ChatRequest{}, func(string) error {
		count++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestGenerateTitle(t *testing.T) {
	provider, requests := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "\"Dragon Stories.\"\nextra line")
	}, "sk-test")

	long := strings.Repeat("d", 300)
	title, err := provider.GenerateTitle(context.Background(), long, "Once upon a time")

	require.NoError(t, err)
	assert.Equal(t, "Dragon Stories", title)

	req := <-requests
	assert.EqualValues(t, 30, req.Body["max_tokens"])
	prompt := req.Body["messages"].([]interface{})[0].(map[string]interface{})["content"].(string)
	assert.Contains(t, prompt, "User: "+strings.Repeat("d", 200)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("d", 201))
	assert.Contains(t, prompt, "Assistant: Once upon a time")
}

func TestGenerateTitle_EmptyResponse(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "   ")
	}, "sk-test")

	_, err := provider.GenerateTitle(context.Background(), "hi", "hello")
	assert.Error(t, err)
}

func TestValidateAPIKey(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		provider, requests := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeCompletion(w, "Hello")
		}, "")

		require.NoError(t, provider.ValidateAPIKey(context.Background(), "sk-new"))
		req := <-requests
		assert.Equal(t, "Bearer sk-new", req.Authorization)
		assert.EqualValues(t, 10, req.Body["max_tokens"])
	})

	t.Run("rejected", func(t *testing.T) {
		var calls int32
		provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeAPIError(w, http.StatusUnauthorized, "invalid x-api-key")
		}, "")

		err := provider.ValidateAPIKey(context.Background(), "sk-bad")
		assert.True(t, IsValidation(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("empty", func(t *testing.T) {
		provider, requests := newTestProvider(t, streamHandler(), "")

		assert.True(t, IsValidation(provider.ValidateAPIKey(context.Background(), "  ")))
		assert.Empty(t, requests)
	})

	t.Run("rate limited is not a rejection", func(t *testing.T) {
		provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusTooManyRequests, "slow down")
		}, "")

		err := provider.ValidateAPIKey(context.Background(), "sk-ok")
		require.Error(t, err)
		assert.False(t, IsValidation(err))
	})
}

func TestNormalizeContent(t *testing.T) {
	single := NormalizeContent([]ContentPart{{Type: ContentPartText, Text: "hi"}})
	assert.Equal(t, PlainText("hi"), single)

	image := NormalizeContent([]ContentPart{{Type: ContentPartImage, MediaType: "image/png", Data: "x"}})
	assert.IsType(t, ContentParts{}, image)

	mixed := NormalizeContent([]ContentPart{
		{Type: ContentPartImage, MediaType: "image/png", Data: "x"},
		{Type: ContentPartText, Text: "what"},
	})
	parts, ok := mixed.(ContentParts)
	require.True(t, ok)
	assert.Len(t, parts, 2)

	twoTexts := NormalizeContent([]ContentPart{{Type: ContentPartText, Text: "a"}, {Type: ContentPartText, Text: "b"}})
	assert.IsType(t, ContentParts{}, twoTexts)
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Trip Planning", CleanTitle("  'Trip Planning.' ", 50))
	assert.Equal(t, "First line", CleanTitle("First line\nSecond", 50))
	assert.Equal(t, "abcde", CleanTitle("abcdefgh", 5))
	assert.Equal(t, "", CleanTitle("\"\"", 50))
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}

	var attempts int
	err := RetryWithBackoff(context.Background(), cfg, func(context.Context) error {
		attempts++
		return &AIError{Type: ErrTypeNetwork}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = RetryWithBackoff(context.Background(), cfg, func(context.Context) error {
		attempts++
		return NewValidationError("test", "bad key", nil)
	})
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, attempts)

	attempts = 0
	err = RetryWithBackoff(context.Background(), cfg, func(context.Context) error {
		attempts++
		return &AIError{Type: ErrTypeProvider, Code: http.StatusBadRequest}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
