// File: internal/services/profile/service.go
package profile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iyunix/go-tilde/internal/domain"
	settingsrepo "github.com/iyunix/go-tilde/internal/repository/settings"
	"github.com/iyunix/go-tilde/internal/secrets"
	"github.com/iyunix/go-tilde/internal/services/ai"
)

const defaultAppIcon = "tilde-logo.png"

var styleDescriptions = map[string]string{
	"concise":  "Prefers brief, to-the-point responses",
	"balanced": "Prefers balanced responses with appropriate detail",
	"detailed": "Prefers thorough, detailed explanations",
}

// Service owns the profile and settings singletons. Rows are created with
// defaults on first read.
type Service struct {
	repo      settingsrepo.SettingsRepository
	sealer    Sealer
	validator KeyValidator
	config    *Config
	logger    Logger
	now       func() time.Time

	// serializes read-modify-write of the singleton rows
	mu sync.Mutex
}

// NewService builds the service. A nil sealer stores the API key as is.
func NewService(repo settingsrepo.SettingsRepository, sealer Sealer, cfg *Config, logger Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile config: %w", err)
	}
	return &Service{
		repo:   repo,
		sealer: sealer,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetKeyValidator installs the provider used to check new API keys. The
// provider itself reads keys from this service, so it is wired after both
// exist.
func (s *Service) SetKeyValidator(v KeyValidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validator = v
}

// ===== PROFILE =====

func (s *Service) GetProfile(ctx context.Context) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	profile, err := s.repo.FindOrCreateProfile(ctx, domain.DefaultProfile(s.now()))
	if err != nil {
		s.logger.Error("failed to load profile", "error", err)
		return nil, NewStorageError("GetProfile", err)
	}
	return profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, name, about string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateProfile(ctx, "UpdateProfile", name, about)
}

// ===== SETTINGS =====

func (s *Service) GetSettings(ctx context.Context) (*domain.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()

	settings, err := s.repo.FindOrCreateSettings(ctx, domain.DefaultSettings(s.now()))
	if err != nil {
		s.logger.Error("failed to load settings", "error", err)
		return nil, NewStorageError("GetSettings", err)
	}
	return settings, nil
}

// UpdateSettings applies patch and returns the stored result.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (*domain.Settings, error) {
	if patch.Theme != nil {
		switch *patch.Theme {
		case domain.ThemeLight, domain.ThemeDark, domain.ThemeSystem:
		default:
			return nil, NewValidationError("UpdateSettings", fmt.Sprintf("unknown theme %q", *patch.Theme), nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateSettings(ctx, "UpdateSettings", func(settings *domain.Settings) error {
		if patch.Theme != nil {
			settings.Theme = *patch.Theme
		}
		if patch.Haptics != nil {
			settings.Haptics = *patch.Haptics
		}
		if patch.AppIcon != nil {
			settings.AppIcon = strings.TrimSpace(*patch.AppIcon)
		}
		if patch.HasSeenWelcome != nil {
			settings.HasSeenWelcome = *patch.HasSeenWelcome
		}
		return nil
	})
}

// GetAPIKey returns the plaintext API key, or "" when none is stored.
func (s *Service) GetAPIKey(ctx context.Context) (string, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	return s.open("GetAPIKey", settings.APIKey)
}

func (s *Service) SetAPIKey(ctx context.Context, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAPIKey(ctx, "SetAPIKey", apiKey)
}

func (s *Service) HasAPIKey(ctx context.Context) (bool, error) {
	key, err := s.GetAPIKey(ctx)
	if err != nil {
		return false, err
	}
	return key != "", nil
}

func (s *Service) GetAppIcon(ctx context.Context) (string, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	if settings.AppIcon == "" {
		return defaultAppIcon, nil
	}
	return settings.AppIcon, nil
}

func (s *Service) SetAppIcon(ctx context.Context, icon string) error {
	_, err := s.UpdateSettings(ctx, SettingsPatch{AppIcon: &icon})
	return err
}

func (s *Service) HasSeenWelcome(ctx context.Context) (bool, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return false, err
	}
	return settings.HasSeenWelcome, nil
}

func (s *Service) MarkWelcomeSeen(ctx context.Context) error {
	seen := true
	_, err := s.UpdateSettings(ctx, SettingsPatch{HasSeenWelcome: &seen})
	return err
}

// ===== FLOWS =====

// SaveCredentials stores the API key and the profile together. A key that
// differs from the stored one is checked with the provider first; a rejected
// key leaves everything unchanged.
func (s *Service) SaveCredentials(ctx context.Context, apiKey, name, about string) error {
	const op = "SaveCredentials"
	apiKey = strings.TrimSpace(apiKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateProfile(op, name, about); err != nil {
		return err
	}

	current, err := s.GetAPIKey(ctx)
	if err != nil {
		return err
	}
	if apiKey != "" && apiKey != current {
		if err := s.checkKey(ctx, op, apiKey); err != nil {
			return err
		}
	}

	if err := s.setAPIKey(ctx, op, apiKey); err != nil {
		return err
	}
	_, err = s.updateProfile(ctx, op, name, about)
	return err
}

// CompleteOnboarding stores the first-run answers: name, a context built from
// purposes and style, and the API key.
func (s *Service) CompleteOnboarding(ctx context.Context, in Onboarding) (*domain.Profile, error) {
	const op = "CompleteOnboarding"
	apiKey := strings.TrimSpace(in.APIKey)
	if apiKey == "" {
		return nil, NewValidationError(op, "API key is required", nil)
	}
	about := BuildOnboardingContext(in.Purposes, in.Style)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateProfile(op, in.Name, about); err != nil {
		return nil, err
	}
	if err := s.checkKey(ctx, op, apiKey); err != nil {
		return nil, err
	}

	profile, err := s.updateProfile(ctx, op, in.Name, about)
	if err != nil {
		return nil, err
	}
	if err := s.setAPIKey(ctx, op, apiKey); err != nil {
		return nil, err
	}

	s.logger.Info("onboarding completed", "purposes", len(in.Purposes), "style", in.Style)
	return profile, nil
}

// BuildOnboardingContext renders purposes and style as the profile context.
// Unknown styles add nothing.
func BuildOnboardingContext(purposes []string, style string) string {
	var lines []string

	cleaned := make([]string, 0, len(purposes))
	for _, p := range purposes {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		lines = append(lines, "Uses tilde for: "+strings.Join(cleaned, ", "))
	}
	if desc, ok := styleDescriptions[strings.TrimSpace(style)]; ok {
		lines = append(lines, desc)
	}
	return strings.Join(lines, "\n")
}

// ===== HELPERS =====

func (s *Service) updateProfile(ctx context.Context, op, name, about string) (*domain.Profile, error) {
	name = strings.TrimSpace(name)
	about = strings.TrimSpace(about)
	if err := s.validateProfile(op, name, about); err != nil {
		return nil, err
	}

	profile, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	profile.Name = name
	profile.Context = about
	profile.Updated = s.now()

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		s.logger.Error("failed to save profile", "error", err)
		return nil, NewStorageError(op, err)
	}
	return profile, nil
}

func (s *Service) mutateSettings(ctx context.Context, op string, mutate func(*domain.Settings) error) (*domain.Settings, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := mutate(settings); err != nil {
		return nil, err
	}
	settings.Updated = s.now()

	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		s.logger.Error("failed to save settings", "operation", op, "error", err)
		return nil, NewStorageError(op, err)
	}
	return settings, nil
}

func (s *Service) setAPIKey(ctx context.Context, op, apiKey string) error {
	stored, err := s.seal(op, strings.TrimSpace(apiKey))
	if err != nil {
		return err
	}
	_, err = s.mutateSettings(ctx, op, func(settings *domain.Settings) error {
		settings.APIKey = stored
		return nil
	})
	if err == nil {
		s.logger.Info("API key updated", "configured", apiKey != "", "sealed", s.sealer != nil && stored != "")
	}
	return err
}

func (s *Service) checkKey(ctx context.Context, op, apiKey string) error {
	if s.validator == nil {
		s.logger.Warn("no key validator configured, storing API key unchecked")
		return nil
	}
	if err := s.validator.ValidateAPIKey(ctx, apiKey); err != nil {
		s.logger.Warn("API key rejected", "operation", op, "error", err)
		return NewValidationError(op, "Invalid API key. Please check and try again.", err)
	}
	return nil
}

func (s *Service) seal(op, apiKey string) (string, error) {
	if s.sealer == nil || apiKey == "" {
		return apiKey, nil
	}
	sealed, err := s.sealer.Seal(apiKey)
	if err != nil {
		return "", NewSecretError(op, "failed to seal API key", err)
	}
	return sealed, nil
}

func (s *Service) open(op, stored string) (string, error) {
	if s.sealer == nil {
		if secrets.IsSealed(stored) {
			return "", NewSecretError(op, "API key is sealed but no settings secret is configured", nil)
		}
		return stored, nil
	}
	key, err := s.sealer.Open(stored)
	if err != nil {
		return "", NewSecretError(op, "failed to unseal API key", err)
	}
	return key, nil
}

func (s *Service) validateProfile(op, name, about string) error {
	if n := len([]rune(strings.TrimSpace(name))); n > s.config.MaxNameLength {
		return NewValidationError(op, fmt.Sprintf("name must be %d characters or less", s.config.MaxNameLength), nil)
	}
	if n := len([]rune(strings.TrimSpace(about))); n > s.config.MaxContextLength {
		return NewValidationError(op, fmt.Sprintf("context must be %d characters or less", s.config.MaxContextLength), nil)
	}
	return nil
}

// compile-time check
var _ ai.CredentialSource = (*Service)(nil)
