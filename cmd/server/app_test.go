package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-tilde/internal/auth"
	"github.com/iyunix/go-tilde/internal/config"
	"github.com/iyunix/go-tilde/internal/repository"
	"github.com/iyunix/go-tilde/internal/services"
	"github.com/iyunix/go-tilde/internal/services/attachment"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "tilde.db")
	if mutate != nil {
		mutate(cfg)
	}

	db, err := repository.Open(cfg.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })

	app, err := InitializeApplication(cfg, &services.NoOpLogger{}, db)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func serve(app *Application, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, req)
	return rec
}

func TestInitializeApplication_OpenAPI(t *testing.T) {
	app := newTestApp(t, nil)
	assert.False(t, app.Auth)
	assert.False(t, app.Sealed)

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestInitializeApplication_BearerAuthAndSealing(t *testing.T) {
	secret := "jwt-secret"
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.JWTSecretKey = secret
		cfg.SettingsSecret = "settings-secret"
	})
	assert.True(t, app.Auth)
	assert.True(t, app.Sealed)

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.GenerateJWT("local-device", []byte(secret), time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = serve(app, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitializeApplication_BlobURLsSkipBearerAuth(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.JWTSecretKey = "jwt-secret"
	})
	require.True(t, app.Auth)

	pdf := []byte("%PDF-1.7 minimal")
	att, err := app.AttachmentService.SaveAttachment(context.Background(), "conv-1", 0, attachment.File{
		Filename: "notes.pdf",
		MimeType: "application/pdf",
		Data:     pdf,
	})
	require.NoError(t, err)
	url, err := app.AttachmentService.GetAttachmentURL(att)
	require.NoError(t, err)

	rec := serve(app, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, pdf, rec.Body.Bytes())
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"), "blobs are not rate limited")

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/attachments/"+att.ID, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "attachment metadata still needs a token")
}
