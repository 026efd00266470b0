// File: cmd/server/app.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/iyunix/go-tilde/internal/config"
	"github.com/iyunix/go-tilde/internal/export"
	"github.com/iyunix/go-tilde/internal/handlers"
	"github.com/iyunix/go-tilde/internal/middleware"
	"github.com/iyunix/go-tilde/internal/ratelimit"
	attrepo "github.com/iyunix/go-tilde/internal/repository/attachment"
	convrepo "github.com/iyunix/go-tilde/internal/repository/conversation"
	settingsrepo "github.com/iyunix/go-tilde/internal/repository/settings"
	"github.com/iyunix/go-tilde/internal/secrets"
	"github.com/iyunix/go-tilde/internal/services"
	"github.com/iyunix/go-tilde/internal/services/ai"
	"github.com/iyunix/go-tilde/internal/services/attachment"
	"github.com/iyunix/go-tilde/internal/services/chat"
	"github.com/iyunix/go-tilde/internal/services/conversation"
	"github.com/iyunix/go-tilde/internal/services/profile"
)

// maxFilesPerUpload bounds one multipart request in units of the per-file limit.
const maxFilesPerUpload = 4

// Application aggregates all services and handlers
type Application struct {
	Config  *config.Config
	Logger  services.Logger
	Handler http.Handler
	Sealed  bool
	Auth    bool

	ConversationService *conversation.Service
	AttachmentService   *attachment.Service
	ProfileService      *profile.Service
	Coordinator         *chat.Coordinator
	Provider            *ai.OpenAIProvider

	handles *attachment.HandleCache
	limiter *ratelimit.MemoryRateLimiter
}

// Close stops background work. In-flight title requests are waited for.
func (a *Application) Close() {
	a.Coordinator.Wait()
	a.limiter.Close()
	a.handles.Close()
}

// Provider functions

func ProvideAIConfig(cfg *config.Config) *ai.Config {
	aiConfig := ai.DefaultConfig()
	aiConfig.BaseURL = cfg.LLMBaseURL
	aiConfig.Model = cfg.LLMModel
	aiConfig.MaxTokens = cfg.LLMMaxTokens
	aiConfig.Timeout = cfg.LLMTimeout
	aiConfig.MaxRetries = cfg.LLMMaxRetries
	return aiConfig
}

func ProvideAttachmentConfig(cfg *config.Config) *attachment.Config {
	attConfig := attachment.DefaultConfig()
	attConfig.HandleTTL = cfg.BlobURLTTL
	attConfig.HandleCacheBytes = int64(cfg.BlobCacheMB) << 20
	attConfig.MaxFileSize = int64(cfg.MaxUploadMB) << 20
	return attConfig
}

func ProvideChatConfig(cfg *config.Config) *chat.Config {
	chatConfig := chat.DefaultConfig()
	chatConfig.DeletePlaceholderOnError = cfg.DeletePlaceholderOnError
	return chatConfig
}

func ProvideRateLimitConfig(cfg *config.Config) *ratelimit.Config {
	rlConfig := ratelimit.DefaultConfig()
	rlConfig.RequestsPerSecond = cfg.RateLimitRPS
	rlConfig.Burst = cfg.RateLimitBurst
	return rlConfig
}

// ProvideSealer returns nil when no settings secret is configured; the API
// key is then stored as entered.
func ProvideSealer(cfg *config.Config) (profile.Sealer, error) {
	if cfg.SettingsSecret == "" {
		return nil, nil
	}
	sealer, err := secrets.NewSealer(cfg.SettingsSecret)
	if err != nil {
		return nil, fmt.Errorf("settings sealer: %w", err)
	}
	return sealer, nil
}

// InitializeApplication wires repositories, services and handlers on db.
func InitializeApplication(cfg *config.Config, logger services.Logger, db *gorm.DB) (*Application, error) {
	// --- Repositories ---
	conversationRepo := convrepo.NewConversationRepository(db)
	attachmentRepo := attrepo.NewAttachmentRepository(db)
	settingsRepo := settingsrepo.NewSettingsRepository(db)

	// --- Services ---
	conversationService, err := conversation.NewService(conversationRepo, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("conversation service: %w", err)
	}

	attConfig := ProvideAttachmentConfig(cfg)
	handles, err := attachment.NewHandleCache(attConfig.HandleCacheBytes, attConfig.HandleTTL)
	if err != nil {
		return nil, fmt.Errorf("handle cache: %w", err)
	}
	attachmentService, err := attachment.NewService(attachmentRepo, handles, attConfig, logger)
	if err != nil {
		handles.Close()
		return nil, fmt.Errorf("attachment service: %w", err)
	}

	sealer, err := ProvideSealer(cfg)
	if err != nil {
		handles.Close()
		return nil, err
	}
	profileService, err := profile.NewService(settingsRepo, sealer, nil, logger)
	if err != nil {
		handles.Close()
		return nil, fmt.Errorf("profile service: %w", err)
	}

	provider, err := ai.NewOpenAIProvider(ProvideAIConfig(cfg), profileService, logger)
	if err != nil {
		handles.Close()
		return nil, fmt.Errorf("ai provider: %w", err)
	}
	profileService.SetKeyValidator(provider)

	coordinator, err := chat.NewCoordinator(conversationService, attachmentService, profileService, provider, ProvideChatConfig(cfg), logger)
	if err != nil {
		handles.Close()
		return nil, fmt.Errorf("chat coordinator: %w", err)
	}

	limiter, err := ratelimit.NewMemoryRateLimiter(ProvideRateLimitConfig(cfg))
	if err != nil {
		handles.Close()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	// --- Handlers ---
	router := handlers.NewRouter(handlers.Router{
		Conversations: handlers.NewConversationHandler(conversationService, coordinator, export.New(time.Local), logger),
		Chat:          handlers.NewChatHandler(conversationService, coordinator, logger),
		Attachments:   handlers.NewAttachmentHandler(attachmentService, attConfig.MaxFileSize*maxFilesPerUpload, logger),
		Profile:       handlers.NewProfileHandler(profileService, logger),
		Logs:          handlers.NewLogHandler(logger),
		AllowedOrigin: cfg.AllowedOrigin,
		Global: []mux.MiddlewareFunc{
			middleware.RecoverPanic(logger),
			middleware.LoggingMiddleware(logger),
		},
		Protected: []mux.MiddlewareFunc{
			middleware.RateLimitMiddleware(limiter, logger),
			middleware.NewBearerAuth([]byte(cfg.JWTSecretKey), logger),
		},
	})

	return &Application{
		Config:              cfg,
		Logger:              logger,
		Handler:             router,
		Sealed:              sealer != nil,
		Auth:                cfg.JWTSecretKey != "",
		ConversationService: conversationService,
		AttachmentService:   attachmentService,
		ProfileService:      profileService,
		Coordinator:         coordinator,
		Provider:            provider,
		handles:             handles,
		limiter:             limiter,
	}, nil
}
