// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iyunix/go-tilde/internal/config"
	"github.com/iyunix/go-tilde/internal/repository"
	"github.com/iyunix/go-tilde/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tilde: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logger := services.NewLoggerWithWriter("tilde", os.Stdout, services.ParseLogLevel(cfg.LogLevel), cfg.IsProduction())
	if cfg.EnvFileLoaded {
		logger.Debug("loaded .env file")
	}
	if cfg.ConfigFile != "" {
		logger.Info("loaded config file", "path", cfg.ConfigFile)
	}

	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := repository.Close(db); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	app, err := InitializeApplication(cfg, logger, db)
	if err != nil {
		return err
	}
	defer app.Close()

	// --- Server Configuration ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// --- Startup Logging ---
	logger.Info("server starting",
		"addr", srv.Addr,
		"database", cfg.DatabasePath,
		"model", cfg.LLMModel,
		"bearer_auth", app.Auth,
		"api_key_sealed", app.Sealed,
		"environment", cfg.Environment)
	if !app.Auth {
		logger.Warn("JWT_SECRET_KEY not set, API is unauthenticated")
	}

	// --- Start Server in Goroutine ---
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server startup failed: %w", err)
	case sig := <-stop:
		logger.Info("shutting down server gracefully", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
