package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"SERVER_PORT", "PORT", "DATABASE_URL", "WETRO_API_TOKEN", "WETRO_API_KEY",
	"WETRO_QUERY_MODEL", "PREMIUM_CREDIT_AMOUNT", "WEBHOOK_ATOMIC_UPDATES",
	"WEBHOOK_DEDUP_ENABLED", "WEBHOOK_DEDUP_TTL_MINUTES", "DEDUP_KEY_PREFIX",
	"CORS_ALLOWED_ORIGINS", "SUPABASE_URL", "STALE_SESSION_AFTER_MINUTES",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, key := range managedKeys {
		unsetEnvWithCleanup(t, key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, defaultQueryModel, cfg.WetroQueryModel)
	assert.Equal(t, 100, cfg.PremiumCreditAmount)
	assert.True(t, cfg.WebhookAtomicUpdates)
	assert.False(t, cfg.WebhookDedupEnabled)
	assert.Equal(t, 24*time.Hour, cfg.DedupTTL())
	assert.Equal(t, time.Hour, cfg.StaleSessionAfter())
	assert.Equal(t, "papermind:webhook", cfg.DedupKeyPrefix)
	assert.Equal(t, "papermind.events", cfg.EventsExchange)
	assert.Equal(t, defaultCORSOrigins, cfg.AllowedOrigins())
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	cleanEnv(t)
	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "10000")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "10000", cfg.ServerPort)
}

func TestLoadConfig_ReadsEnvFile(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	content := "WETRO_API_TOKEN=file-token\nDATABASE_URL=postgres://localhost/papermind\nPREMIUM_CREDIT_AMOUNT=250\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.WetroAPIToken)
	assert.Equal(t, 250, cfg.PremiumCreditAmount)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_TokenAlias(t *testing.T) {
	cleanEnv(t)
	setEnvWithCleanup(t, "WETRO_API_KEY", "alias-token")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "alias-token", cfg.WetroAPIToken)
}

func TestLoadConfig_CoercesInvalidNumbers(t *testing.T) {
	cleanEnv(t)
	setEnvWithCleanup(t, "PREMIUM_CREDIT_AMOUNT", "-5")
	setEnvWithCleanup(t, "WEBHOOK_DEDUP_TTL_MINUTES", "0")
	setEnvWithCleanup(t, "DEDUP_KEY_PREFIX", "custom:prefix:")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PremiumCreditAmount)
	assert.Equal(t, 1440, cfg.WebhookDedupTTLMinutes)
	assert.Equal(t, "custom:prefix", cfg.DedupKeyPrefix)
}

func TestLoadConfig_ZeroCreditsUsesDefault(t *testing.T) {
	cleanEnv(t)
	setEnvWithCleanup(t, "PREMIUM_CREDIT_AMOUNT", "0")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PremiumCreditAmount)
}

func TestValidate_ReportsMissingKey(t *testing.T) {
	err := Config{DatabaseURL: "postgres://x"}.Validate()
	require.ErrorIs(t, err, ErrMissingRequired)
	assert.Contains(t, err.Error(), "WETRO_API_TOKEN")

	err = Config{WetroAPIToken: "token"}.Validate()
	require.ErrorIs(t, err, ErrMissingRequired)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	assert.NoError(t, Config{WetroAPIToken: "token", DatabaseURL: "postgres://x"}.Validate())
}

func TestAllowedOriginsParsesList(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestSupabaseIssuer(t *testing.T) {
	assert.Equal(t, "", Config{}.SupabaseIssuer())
	assert.Equal(t, "https://abc.supabase.co/auth/v1", Config{SupabaseURL: "https://abc.supabase.co/"}.SupabaseIssuer())
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
