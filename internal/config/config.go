// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "tilde.yaml"

type Config struct {
	Environment string `yaml:"-"`

	ServerPort    string `yaml:"server_port"`
	DatabasePath  string `yaml:"database_path"`
	LogLevel      string `yaml:"log_level"`
	AllowedOrigin string `yaml:"allowed_origin"`

	// LLM provider
	LLMBaseURL    string        `yaml:"llm_base_url"`
	LLMModel      string        `yaml:"llm_model"`
	LLMMaxTokens  int           `yaml:"llm_max_tokens"`
	LLMTimeout    time.Duration `yaml:"llm_timeout"`
	LLMMaxRetries int           `yaml:"llm_max_retries"`

	// Secrets
	JWTSecretKey   string `yaml:"-"`
	SettingsSecret string `yaml:"-"`

	// Attachments
	BlobURLTTL  time.Duration `yaml:"blob_url_ttl"`
	BlobCacheMB int           `yaml:"blob_cache_mb"`
	MaxUploadMB int           `yaml:"max_upload_mb"`

	// Rate limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	DeletePlaceholderOnError bool `yaml:"delete_placeholder_on_error"`

	// Where values came from, for startup logging
	EnvFileLoaded bool   `yaml:"-"`
	ConfigFile    string `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ServerPort:     "8080",
		DatabasePath:   "tilde.db",
		LogLevel:       "info",
		AllowedOrigin:  "*",
		LLMBaseURL:     "https://api.anthropic.com/v1/",
		LLMModel:       "claude-sonnet-4-20250514",
		LLMMaxTokens:   4096,
		LLMTimeout:     5 * time.Minute,
		LLMMaxRetries:  3,
		BlobURLTTL:     10 * time.Minute,
		BlobCacheMB:    64,
		MaxUploadMB:    25,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (TILDE_CONFIG, default tilde.yaml) and the environment, in that order.
// Outside production a .env file is read first.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	cfg := Default()
	cfg.Environment = env

	if !cfg.IsProduction() {
		cfg.EnvFileLoaded = godotenv.Load() == nil
	}

	path, explicit := os.LookupEnv("TILDE_CONFIG")
	if !explicit {
		path = defaultConfigFile
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks ranges and, in production, the required secrets.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_PATH is required"))
	}
	if c.LLMMaxTokens <= 0 {
		errs = append(errs, errors.New("LLM_MAX_TOKENS must be positive"))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT must be positive"))
	}
	if c.LLMMaxRetries < 1 {
		errs = append(errs, errors.New("LLM_MAX_RETRIES must be at least 1"))
	}
	if c.BlobURLTTL <= 0 {
		errs = append(errs, errors.New("BLOB_URL_TTL must be positive"))
	}
	if c.BlobCacheMB <= 0 || c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("BLOB_CACHE_MB and MAX_UPLOAD_MB must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	// Validation for production environments
	if c.IsProduction() {
		missing := []string{}
		if c.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if c.SettingsSecret == "" {
			missing = append(missing, "SETTINGS_SECRET")
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("missing required production environment variables: %v", missing))
		}
	}
	return errors.Join(errs...)
}

// ===== HELPERS =====

// loadFile overlays YAML values. A missing file is only an error when it
// was named explicitly.
func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.AllowedOrigin = getEnv("ALLOWED_ORIGIN", c.AllowedOrigin)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.JWTSecretKey = getEnv("JWT_SECRET_KEY", c.JWTSecretKey)
	c.SettingsSecret = getEnv("SETTINGS_SECRET", c.SettingsSecret)

	var err error
	c.LLMMaxTokens, err = getEnvAsInt("LLM_MAX_TOKENS", c.LLMMaxTokens)
	collect(err)
	c.LLMTimeout, err = getEnvAsDuration("LLM_TIMEOUT", c.LLMTimeout)
	collect(err)
	c.LLMMaxRetries, err = getEnvAsInt("LLM_MAX_RETRIES", c.LLMMaxRetries)
	collect(err)
	c.BlobURLTTL, err = getEnvAsDuration("BLOB_URL_TTL", c.BlobURLTTL)
	collect(err)
	c.BlobCacheMB, err = getEnvAsInt("BLOB_CACHE_MB", c.BlobCacheMB)
	collect(err)
	c.MaxUploadMB, err = getEnvAsInt("MAX_UPLOAD_MB", c.MaxUploadMB)
	collect(err)
	c.RateLimitRPS, err = getEnvAsFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	collect(err)
	c.RateLimitBurst, err = getEnvAsInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	collect(err)
	c.DeletePlaceholderOnError, err = getEnvAsBool("DELETE_PLACEHOLDER_ON_ERROR", c.DeletePlaceholderOnError)
	collect(err)

	return errors.Join(errs...)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not an integer", key, strValue)
	}
	return intValue, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a number", key, strValue)
	}
	return f, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a boolean", key, strValue)
	}
	return b, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a duration", key, strValue)
	}
	return d, nil
}
