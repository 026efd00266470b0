package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"ENV", "TILDE_CONFIG", "SERVER_PORT", "DATABASE_PATH", "LOG_LEVEL", "ALLOWED_ORIGIN",
	"LLM_BASE_URL", "LLM_MODEL", "LLM_MAX_TOKENS", "LLM_TIMEOUT", "LLM_MAX_RETRIES",
	"JWT_SECRET_KEY", "SETTINGS_SECRET", "BLOB_URL_TTL", "BLOB_CACHE_MB", "MAX_UPLOAD_MB",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "DELETE_PLACEHOLDER_ON_ERROR",
}

// isolate runs the test in an empty directory with no config variables set.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range configKeys {
		if value, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, value) })
			os.Unsetenv(key)
		}
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "tilde.db", cfg.DatabasePath)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLMModel)
	assert.Equal(t, 4096, cfg.LLMMaxTokens)
	assert.Equal(t, 5*time.Minute, cfg.LLMTimeout)
	assert.Equal(t, 10*time.Minute, cfg.BlobURLTTL)
	assert.False(t, cfg.DeletePlaceholderOnError)
	assert.False(t, cfg.EnvFileLoaded)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := isolate(t)
	yamlBody := "server_port: \"9000\"\nllm_model: file-model\nllm_timeout: 90s\nrate_limit_rps: 2.5\ndelete_placeholder_on_error: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tilde.yaml"), []byte(yamlBody), 0o600))
	t.Setenv("LLM_MODEL", "env-model")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "env-model", cfg.LLMModel, "environment wins over the file")
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.True(t, cfg.DeletePlaceholderOnError)
	assert.Equal(t, "tilde.yaml", cfg.ConfigFile)
}

func TestLoad_DotEnvOutsideProduction(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_PATH=from-dotenv.db\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DATABASE_PATH") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.EnvFileLoaded)
	assert.Equal(t, "from-dotenv.db", cfg.DatabasePath)
}

func TestLoad_ExplicitConfigFileMustExist(t *testing.T) {
	isolate(t)
	t.Setenv("TILDE_CONFIG", "missing.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LLM_MAX_TOKENS", "many"},
		{"LLM_TIMEOUT", "forever"},
		{"RATE_LIMIT_RPS", "fast"},
		{"DELETE_PLACEHOLDER_ON_ERROR", "maybe"},
		{"LLM_MAX_RETRIES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	assert.Contains(t, err.Error(), "SETTINGS_SECRET")

	t.Setenv("JWT_SECRET_KEY", "jwt")
	t.Setenv("SETTINGS_SECRET", "settings")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
