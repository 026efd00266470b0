// File: internal/repository/settings/settings_repository.go
package settings

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/iyunix/go-tilde/internal/domain"
)

type gormSettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &gormSettingsRepository{db: db}
}

func (r *gormSettingsRepository) FindOrCreateProfile(ctx context.Context, defaults *domain.Profile) (*domain.Profile, error) {
	if defaults == nil {
		return nil, errors.New("default profile cannot be nil")
	}

	var profile domain.Profile
	err := r.db.WithContext(ctx).
		Where(domain.Profile{ID: domain.ProfileID}).
		Attrs(*defaults).
		FirstOrCreate(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("database error loading profile: %w", err)
	}
	return &profile, nil
}

// SaveProfile upserts the singleton profile row.
func (r *gormSettingsRepository) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}

	profile.ID = domain.ProfileID
	profile.Updated = profile.Updated.UTC()
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("database error saving profile: %w", err)
	}
	return nil
}

func (r *gormSettingsRepository) FindOrCreateSettings(ctx context.Context, defaults *domain.Settings) (*domain.Settings, error) {
	if defaults == nil {
		return nil, errors.New("default settings cannot be nil")
	}

	var settings domain.Settings
	err := r.db.WithContext(ctx).
		Where(domain.Settings{ID: domain.SettingsID}).
		Attrs(*defaults).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("database error loading settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings upserts the singleton settings row, including false booleans.
func (r *gormSettingsRepository) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	if settings == nil {
		return errors.New("settings cannot be nil")
	}

	settings.ID = domain.SettingsID
	settings.Updated = settings.Updated.UTC()
	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("database error saving settings: %w", err)
	}
	return nil
}
