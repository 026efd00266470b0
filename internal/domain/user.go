// File: internal/domain/user.go
package domain

import "time"

const (
	ProfileID  = "profile"
	SettingsID = "settings"
)

// Profile holds who the user is; it feeds the system instruction.
type Profile struct {
	ID      string    `json:"-" gorm:"primaryKey;size:16"`
	Name    string    `json:"name"`
	Context string    `json:"context" gorm:"type:text"` // Additional context about the user
	Updated time.Time `json:"updated"`
}

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Settings holds the API credential and UI preferences. APIKey is stored
// sealed when a settings secret is configured and is never serialized.
type Settings struct {
	ID             string    `json:"-" gorm:"primaryKey;size:16"`
	APIKey         string    `json:"-" gorm:"column:api_key"`
	Theme          Theme     `json:"theme" gorm:"size:16"`
	Haptics        bool      `json:"haptics"`
	AppIcon        string    `json:"appIcon"`
	HasSeenWelcome bool      `json:"hasSeenWelcome"`
	Updated        time.Time `json:"updated"`
}

// DefaultProfile returns the profile used before the user provides one.
func DefaultProfile(now time.Time) *Profile {
	return &Profile{ID: ProfileID, Updated: now}
}

// DefaultSettings returns the settings used before the user changes any.
func DefaultSettings(now time.Time) *Settings {
	return &Settings{
		ID:      SettingsID,
		Theme:   ThemeLight,
		Haptics: true,
		AppIcon: "tilde-logo.png",
		Updated: now,
	}
}
