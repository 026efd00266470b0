package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-tilde/internal/dtos"
	"github.com/iyunix/go-tilde/internal/export"
	"github.com/iyunix/go-tilde/internal/repository"
	attrepo "github.com/iyunix/go-tilde/internal/repository/attachment"
	convrepo "github.com/iyunix/go-tilde/internal/repository/conversation"
	settingsrepo "github.com/iyunix/go-tilde/internal/repository/settings"
	"github.com/iyunix/go-tilde/internal/services"
	"github.com/iyunix/go-tilde/internal/services/ai"
	"github.com/iyunix/go-tilde/internal/services/attachment"
	"github.com/iyunix/go-tilde/internal/services/chat"
	"github.com/iyunix/go-tilde/internal/services/conversation"
	"github.com/iyunix/go-tilde/internal/services/profile"
)

type scriptedProvider struct {
	tokens []string
	err    error
}

func (p *scriptedProvider) StreamChat(ctx context.Context, req ai.ChatRequest, onToken func(string) error) (string, error) {
	var full strings.Builder
	for _, tok := range p.tokens {
		full.WriteString(tok)
		if err := onToken(tok); err != nil {
			return full.String(), err
		}
	}
	return full.String(), p.err
}

func (p *scriptedProvider) GenerateTitle(ctx context.Context, user, assistant string) (string, error) {
	return "", errors.New("titles disabled in tests")
}

func (p *scriptedProvider) ValidateAPIKey(ctx context.Context, apiKey string) error {
	if apiKey == "sk-good" {
		return nil
	}
	return &ai.AIError{Type: ai.ErrTypeValidation, Operation: "ValidateAPIKey", Message: "invalid api key"}
}

type testServer struct {
	handler       http.Handler
	provider      *scriptedProvider
	conversations *conversation.Service
	attachments   *attachment.Service
	coordinator   *chat.Coordinator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })

	logger := &services.NoOpLogger{}
	convs, err := conversation.NewService(convrepo.NewConversationRepository(db), nil, logger)
	require.NoError(t, err)

	handles, err := attachment.NewHandleCache(1<<20, time.Minute)
	require.NoError(t, err)
	t.Cleanup(handles.Close)
	atts, err := attachment.NewService(attrepo.NewAttachmentRepository(db), handles, nil, logger)
	require.NoError(t, err)

	profiles, err := profile.NewService(settingsrepo.NewSettingsRepository(db), nil, nil, logger)
	require.NoError(t, err)

	provider := &scriptedProvider{tokens: []string{"Hello", " there"}}
	profiles.SetKeyValidator(provider)

	coord, err := chat.NewCoordinator(convs, atts, profiles, provider, nil, logger)
	require.NoError(t, err)
	t.Cleanup(coord.Wait)

	h := NewRouter(Router{
		Conversations: NewConversationHandler(convs, coord, export.New(time.UTC), logger),
		Chat:          NewChatHandler(convs, coord, logger),
		Attachments:   NewAttachmentHandler(atts, 4<<20, logger),
		Profile:       NewProfileHandler(profiles, logger),
		Logs:          NewLogHandler(logger),
	})
	return &testServer{handler: h, provider: provider, conversations: convs, attachments: atts, coordinator: coord}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type sseEvent struct {
	Name string
	Data string
}

func parseEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(frame, "\n") {
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				ev.Name = name
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				ev.Data = data
			}
		}
		require.NotEmpty(t, ev.Name, "frame %q", frame)
		events = append(events, ev)
	}
	return events
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/conversations", dtos.CreateConversationRequestDTO{Title: "Trip planning"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[dtos.ConversationSummaryDTO](t, rec)
	assert.Equal(t, "Trip planning", created.Title)

	rec = s.do(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]dtos.ConversationSummaryDTO](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/conversations?q=TRIP", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]dtos.ConversationSummaryDTO](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/conversations?q=budget", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]dtos.ConversationSummaryDTO](t, rec))

	rec = s.do(t, http.MethodPatch, "/api/conversations/"+created.ID, dtos.RenameConversationRequestDTO{Title: "Lisbon trip"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lisbon trip", decode[dtos.ConversationSummaryDTO](t, rec).Title)

	rec = s.do(t, http.MethodGet, "/api/conversations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	full := decode[dtos.ConversationDTO](t, rec)
	assert.Equal(t, "Lisbon trip", full.Title)
	assert.Empty(t, full.Messages)

	rec = s.do(t, http.MethodDelete, "/api/conversations/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/conversations/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListConversations_RejectsBadLimit(t *testing.T) {
	s := newTestServer(t)
	for _, limit := range []string{"0", "-1", "abc", "1000"} {
		rec := s.do(t, http.MethodGet, "/api/conversations?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestRenameConversation_Validation(t *testing.T) {
	s := newTestServer(t)
	created := decode[dtos.ConversationSummaryDTO](t, s.do(t, http.MethodPost, "/api/conversations", nil))

	rec := s.do(t, http.MethodPatch, "/api/conversations/"+created.ID, dtos.RenameConversationRequestDTO{Title: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[dtos.ErrorResponse](t, rec).Error)
}

func TestStreamChat_NewConversation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/stream", dtos.ChatStreamRequestDTO{Content: "Say hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "conversation", events[0].Name)
	assert.Equal(t, "token", events[1].Name)
	assert.JSONEq(t, `{"token":"Hello"}`, events[1].Data)
	assert.Equal(t, "token", events[2].Name)
	assert.Equal(t, "complete", events[3].Name)
	assert.JSONEq(t, `{"text":"Hello there"}`, events[3].Data)

	var conv dtos.ConversationSummaryDTO
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &conv))

	rec = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode[[]dtos.MessageDTO](t, rec)
	require.Len(t, messages, 2)
	assert.Equal(t, "Say hello", messages[0].Content)
	assert.Equal(t, "Hello there", messages[1].Content)

	rec = s.do(t, http.MethodPost, "/api/chat/stream", dtos.ChatStreamRequestDTO{ConversationID: conv.ID, Content: "Again"})
	require.Equal(t, http.StatusOK, rec.Code)
	events = parseEvents(t, rec.Body.String())
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &conv))

	stored, err := s.conversations.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestStreamChat_EmptyMessageIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/stream", dtos.ChatStreamRequestDTO{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message is empty", decode[dtos.ErrorResponse](t, rec).Error)
}

func TestStreamChat_ProviderErrorBecomesEvent(t *testing.T) {
	s := newTestServer(t)
	s.provider.tokens = []string{"Partial"}
	s.provider.err = &ai.AIError{Type: ai.ErrTypeRateLimit, Operation: "StreamChat", Message: "rate limited, try again shortly"}

	rec := s.do(t, http.MethodPost, "/api/chat/stream", dtos.ChatStreamRequestDTO{Content: "Hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseEvents(t, rec.Body.String())
	last := events[len(events)-1]
	assert.Equal(t, "error", last.Name)
	assert.JSONEq(t, `{"error":"rate limited, try again shortly"}`, last.Data)
	for _, ev := range events {
		assert.NotEqual(t, "complete", ev.Name)
	}
}

func TestCancelStream_NothingRunning(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodDelete, "/api/conversations/abc/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachments_UploadServeDelete(t *testing.T) {
	s := newTestServer(t)
	created := decode[dtos.ConversationSummaryDTO](t, s.do(t, http.MethodPost, "/api/conversations", nil))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("messageIndex", "0"))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="red.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+created.ID+"/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	saved := decode[[]dtos.AttachmentDTO](t, rec)
	require.Len(t, saved, 1)
	att := saved[0]
	assert.Equal(t, "image", att.Type)
	assert.Equal(t, "red.png", att.Filename)
	require.True(t, strings.HasPrefix(att.URL, attachment.BlobPathPrefix))
	require.NotEmpty(t, att.ThumbnailURL)

	rec = s.do(t, http.MethodGet, att.URL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes(t), rec.Body.Bytes())

	rec = s.do(t, http.MethodGet, att.ThumbnailURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodGet, "/api/attachments/"+att.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, att.ID, decode[dtos.AttachmentDTO](t, rec).ID)

	rec = s.do(t, http.MethodDelete, "/api/attachments/"+att.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/attachments/"+att.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/blobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachments_RequiresFile(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("messageIndex", "0"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/c1/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttachments_CorruptImageIsUnprocessable(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="broken.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/c1/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAttachments_FailedUploadKeepsNothing(t *testing.T) {
	s := newTestServer(t)
	created := decode[dtos.ConversationSummaryDTO](t, s.do(t, http.MethodPost, "/api/conversations", nil))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	files := []struct {
		name string
		data []byte
	}{
		{name: "red.png", data: pngBytes(t)},
		{name: "broken.png", data: []byte("not really a png")},
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+f.name+`"`)
		header.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+created.ID+"/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	stored, err := s.attachments.GetConversationAttachments(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestProfileAndSettings(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[dtos.SettingsDTO](t, rec)
	assert.Equal(t, "light", settings.Theme)
	assert.True(t, settings.Haptics)
	assert.False(t, settings.HasAPIKey)

	rec = s.do(t, http.MethodPatch, "/api/settings", map[string]interface{}{"theme": "dark", "haptics": false})
	require.Equal(t, http.StatusOK, rec.Code)
	settings = decode[dtos.SettingsDTO](t, rec)
	assert.Equal(t, "dark", settings.Theme)
	assert.False(t, settings.Haptics)
	assert.Equal(t, "tilde-logo.png", settings.AppIcon)

	rec = s.do(t, http.MethodPatch, "/api/settings", map[string]interface{}{"theme": "neon"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/profile", dtos.ProfileUpdateRequestDTO{Name: "Ada", Context: "Engineer"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dtos.ProfileDTO{Name: "Ada", Context: "Engineer"}, decode[dtos.ProfileDTO](t, rec))
}

func TestSaveCredentials(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/settings/credentials", dtos.CredentialsRequestDTO{APIKey: "sk-bad", Name: "Ada"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid API key. Please check and try again.", decode[dtos.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/api/profile", nil)
	assert.Empty(t, decode[dtos.ProfileDTO](t, rec).Name, "a rejected key saves nothing")

	rec = s.do(t, http.MethodPost, "/api/settings/credentials", dtos.CredentialsRequestDTO{APIKey: "sk-good", Name: "Ada"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dtos.SettingsDTO](t, rec).HasAPIKey)
}

func TestCompleteOnboarding(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/onboarding", dtos.OnboardingRequestDTO{
		Name:     "Ada",
		Purposes: []string{"work", "learning"},
		APIKey:   "sk-good",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[dtos.ProfileDTO](t, rec)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "Uses tilde for: work, learning", p.Context)

	rec = s.do(t, http.MethodPost, "/api/onboarding", dtos.OnboardingRequestDTO{Name: "Ada"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExportConversation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/chat/stream", dtos.ChatStreamRequestDTO{Content: "Write **bold** text"})
	require.Equal(t, http.StatusOK, rec.Code)
	var conv dtos.ConversationSummaryDTO
	require.NoError(t, json.Unmarshal([]byte(parseEvents(t, rec.Body.String())[0].Data), &conv))

	rec = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/export?format=md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".md")
	assert.Contains(t, rec.Body.String(), "Write **bold** text")

	rec = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/export?format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<strong>bold</strong>")

	rec = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/conversations/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogFrontendEvent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/log", FrontendLogPayload{Level: "error", Message: "render failed"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/log", FrontendLogPayload{Level: "info"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouting_NotFoundAndPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/conversations", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = s.do(t, http.MethodOptions, "/api/conversations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
