// File: internal/services/profile/types.go
package profile

import (
	"context"

	"github.com/iyunix/go-tilde/internal/domain"
)

// Logger defines the logging interface used by the profile service
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// KeyValidator checks an API key against the model provider.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, apiKey string) error
}

// Sealer encrypts the API key at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// SettingsPatch carries the settings fields to change; nil fields are kept.
type SettingsPatch struct {
	Theme          *domain.Theme `json:"theme,omitempty"`
	Haptics        *bool         `json:"haptics,omitempty"`
	AppIcon        *string       `json:"appIcon,omitempty"`
	HasSeenWelcome *bool         `json:"hasSeenWelcome,omitempty"`
}

// Onboarding is what the first-run flow collects.
type Onboarding struct {
	Name     string   `json:"name"`
	Purposes []string `json:"purposes"`
	Style    string   `json:"style"`
	APIKey   string   `json:"apiKey"`
}
