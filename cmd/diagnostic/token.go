// File: cmd/diagnostic/token.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/iyunix/go-tilde/internal/auth"
	"github.com/iyunix/go-tilde/internal/config"
)

// runToken prints a bearer token signed with JWT_SECRET_KEY.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "local-client", "token subject")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime; 0 for no expiry")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if cfg.JWTSecretKey == "" {
		return errors.New("JWT_SECRET_KEY is not set; the API accepts requests without a token")
	}

	token, err := auth.GenerateJWT(*subject, []byte(cfg.JWTSecretKey), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
