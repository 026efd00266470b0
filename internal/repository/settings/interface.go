// File: internal/repository/settings/interface.go
package settings

import (
	"context"

	"github.com/iyunix/go-tilde/internal/domain"
)

// SettingsRepository stores the profile and settings singleton rows.
type SettingsRepository interface {
	// FindOrCreateProfile returns the stored profile, inserting defaults
	// when none exists yet.
	FindOrCreateProfile(ctx context.Context, defaults *domain.Profile) (*domain.Profile, error)
	SaveProfile(ctx context.Context, profile *domain.Profile) error

	FindOrCreateSettings(ctx context.Context, defaults *domain.Settings) (*domain.Settings, error)
	SaveSettings(ctx context.Context, settings *domain.Settings) error
}
