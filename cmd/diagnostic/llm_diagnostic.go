// File: cmd/diagnostic/llm_diagnostic.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iyunix/go-tilde/internal/config"
	"github.com/iyunix/go-tilde/internal/domain"
	"github.com/iyunix/go-tilde/internal/repository"
	settingsrepo "github.com/iyunix/go-tilde/internal/repository/settings"
	"github.com/iyunix/go-tilde/internal/secrets"
	"github.com/iyunix/go-tilde/internal/services"
	"github.com/iyunix/go-tilde/internal/services/ai"
	"github.com/iyunix/go-tilde/internal/services/profile"
)

// runLLM checks the configured provider end to end: key validation, then a
// short streamed reply.
func runLLM(args []string) error {
	fs := flag.NewFlagSet("llm", flag.ContinueOnError)
	key := fs.String("key", "", "API key to test (default: LLM_API_KEY, then the stored key)")
	prompt := fs.String("prompt", "Reply with one short sentence about tildes.", "probe message")
	timeout := fs.Duration("timeout", time.Minute, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	logger := services.NewLoggerWithWriter("diagnostic", os.Stderr, services.ParseLogLevel(cfg.LogLevel), false)

	apiKey, source, err := resolveKey(cfg, *key, logger)
	if err != nil {
		return err
	}
	if apiKey == "" {
		return errors.New("no API key: pass -key, set LLM_API_KEY, or complete onboarding first")
	}
	fmt.Printf("🔑 Using API key from %s\n", source)
	fmt.Printf("🌐 %s (%s)\n", cfg.LLMBaseURL, cfg.LLMModel)

	aiConfig := ai.DefaultConfig()
	aiConfig.BaseURL = cfg.LLMBaseURL
	aiConfig.Model = cfg.LLMModel
	aiConfig.MaxRetries = 1

	provider, err := ai.NewOpenAIProvider(aiConfig, ai.StaticCredentials(apiKey), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := provider.ValidateAPIKey(ctx, apiKey); err != nil {
		return fmt.Errorf("key validation failed: %w", err)
	}
	fmt.Printf("✅ Key accepted in %s\n", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	var firstToken time.Duration
	fmt.Print("💬 ")
	_, err = provider.StreamChat(ctx, ai.ChatRequest{
		Messages: []ai.ChatMessage{{Role: domain.RoleUser, Content: ai.PlainText(*prompt)}},
	}, func(token string) error {
		if firstToken == 0 {
			firstToken = time.Since(start)
		}
		fmt.Print(token)
		return nil
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("stream failed: %w", err)
	}
	fmt.Printf("✅ First token after %s, complete after %s\n",
		firstToken.Round(time.Millisecond), time.Since(start).Round(time.Millisecond))
	return nil
}

// resolveKey prefers the flag, then LLM_API_KEY, then the key stored by
// onboarding in the configured database.
func resolveKey(cfg *config.Config, flagKey string, logger services.Logger) (string, string, error) {
	if flagKey != "" {
		return flagKey, "-key", nil
	}
	if envKey := os.Getenv("LLM_API_KEY"); envKey != "" {
		return envKey, "LLM_API_KEY", nil
	}

	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		return "", "", nil
	}
	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = repository.Close(db) }()

	var sealer profile.Sealer
	if cfg.SettingsSecret != "" {
		s, err := secrets.NewSealer(cfg.SettingsSecret)
		if err != nil {
			return "", "", err
		}
		sealer = s
	}

	profiles, err := profile.NewService(settingsrepo.NewSettingsRepository(db), sealer, nil, logger)
	if err != nil {
		return "", "", err
	}
	key, err := profiles.GetAPIKey(context.Background())
	if err != nil {
		return "", "", fmt.Errorf("read stored key: %w", err)
	}
	return key, cfg.DatabasePath, nil
}
