/**
 * @description
 * This package loads the service configuration from environment variables, with an
 * optional .env file in the working directory. Viper binds every key explicitly so that
 * Unmarshal sees values that are only present in the environment.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading.
 * - github.com/rs/zerolog: warnings about ignored or coerced values.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultServerPort        = "8000"
	defaultQueryModel        = "meta-llama/llama-4-scout-17b-16e-instruct"
	defaultPremiumCredits    = 100
	defaultDedupTTLMinutes   = 1440
	defaultDedupKeyPrefix    = "papermind:webhook"
	defaultEventsExchange    = "papermind.events"
	defaultSweepSchedule     = "*/15 * * * *"
	defaultStaleAfterMinutes = 60
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://usepapermind.com",
	"https://www.usepapermind.com",
	"http://usepapermind.com",
	"http://www.usepapermind.com",
}

// ErrMissingRequired is returned by Validate when a mandatory variable is unset.
var ErrMissingRequired = errors.New("missing required configuration")

// Config holds all the configuration variables for the backend.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	WetroAPIBaseURL          string `mapstructure:"WETRO_API_BASE_URL"`
	WetroAPIToken            string `mapstructure:"WETRO_API_TOKEN"`
	WetroQueryModel          string `mapstructure:"WETRO_QUERY_MODEL"`
	WetroDefaultCollectionID string `mapstructure:"WETRO_DEFAULT_COLLECTION_ID"`
	PremiumCreditAmount      int    `mapstructure:"PREMIUM_CREDIT_AMOUNT"`
	DodoWebhookSecret        string `mapstructure:"DODO_WEBHOOK_SECRET"`
	WebhookAtomicUpdates     bool   `mapstructure:"WEBHOOK_ATOMIC_UPDATES"`
	WebhookDedupEnabled      bool   `mapstructure:"WEBHOOK_DEDUP_ENABLED"`
	WebhookDedupTTLMinutes   int    `mapstructure:"WEBHOOK_DEDUP_TTL_MINUTES"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	DedupKeyPrefix           string `mapstructure:"DEDUP_KEY_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	EventsExchange           string `mapstructure:"EVENTS_EXCHANGE"`
	StaleSessionSchedule     string `mapstructure:"STALE_SESSION_SWEEP_SCHEDULE"`
	StaleSessionAfterMinutes int    `mapstructure:"STALE_SESSION_AFTER_MINUTES"`
	SupabaseURL              string `mapstructure:"SUPABASE_URL"`
	SupabaseJWTSecret        string `mapstructure:"SUPABASE_JWT_SECRET"`
	CORSAllowedOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel                 string `mapstructure:"LOG_LEVEL"`
	LogFormat                string `mapstructure:"LOG_FORMAT"`
}

// DedupTTL is how long a webhook event id is remembered.
func (c Config) DedupTTL() time.Duration {
	return time.Duration(c.WebhookDedupTTLMinutes) * time.Minute
}

// StaleSessionAfter is the age past which a pending session is reported.
func (c Config) StaleSessionAfter() time.Duration {
	return time.Duration(c.StaleSessionAfterMinutes) * time.Minute
}

// AllowedOrigins returns the CORS origins, falling back to the PaperMind front-end hosts.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return append([]string(nil), defaultCORSOrigins...)
	}
	return origins
}

// SupabaseIssuer is the expected "iss" claim of Supabase access tokens, or "" when unknown.
func (c Config) SupabaseIssuer() string {
	if c.SupabaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.SupabaseURL, "/") + "/auth/v1"
}

// Validate reports the first mandatory variable that is unset.
func (c Config) Validate() error {
	required := []struct{ key, value string }{
		{"WETRO_API_TOKEN", c.WetroAPIToken},
		{"DATABASE_URL", c.DatabaseURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingRequired, r.key)
		}
	}
	return nil
}

// LoadConfig reads configuration from environment variables and an optional .env file
// in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("WETRO_QUERY_MODEL", defaultQueryModel)
	viper.SetDefault("PREMIUM_CREDIT_AMOUNT", defaultPremiumCredits)
	viper.SetDefault("WEBHOOK_ATOMIC_UPDATES", true)
	viper.SetDefault("WEBHOOK_DEDUP_ENABLED", false)
	viper.SetDefault("WEBHOOK_DEDUP_TTL_MINUTES", defaultDedupTTLMinutes)
	viper.SetDefault("DEDUP_KEY_PREFIX", defaultDedupKeyPrefix)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("STALE_SESSION_SWEEP_SCHEDULE", defaultSweepSchedule)
	viper.SetDefault("STALE_SESSION_AFTER_MINUTES", defaultStaleAfterMinutes)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	for _, key := range []string{
		"SERVER_PORT", "PORT", "DATABASE_URL",
		"WETRO_API_BASE_URL", "WETRO_QUERY_MODEL", "WETRO_DEFAULT_COLLECTION_ID",
		"PREMIUM_CREDIT_AMOUNT", "DODO_WEBHOOK_SECRET",
		"WEBHOOK_ATOMIC_UPDATES", "WEBHOOK_DEDUP_ENABLED", "WEBHOOK_DEDUP_TTL_MINUTES",
		"REDIS_URL", "DEDUP_KEY_PREFIX", "RABBITMQ_URL", "EVENTS_EXCHANGE",
		"STALE_SESSION_SWEEP_SCHEDULE", "STALE_SESSION_AFTER_MINUTES",
		"SUPABASE_URL", "SUPABASE_JWT_SECRET", "CORS_ALLOWED_ORIGINS",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("WETRO_API_TOKEN", "WETRO_API_TOKEN", "WETRO_API_KEY")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Str("component", "config").Err(err).Msg("failed to read config file; using environment values")
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.WetroAPIToken = strings.TrimSpace(config.WetroAPIToken)
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.DedupKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.DedupKeyPrefix), ":")
	if config.DedupKeyPrefix == "" {
		config.DedupKeyPrefix = defaultDedupKeyPrefix
	}
	if strings.TrimSpace(config.WetroQueryModel) == "" {
		config.WetroQueryModel = defaultQueryModel
	}

	if config.PremiumCreditAmount <= 0 {
		log.Warn().Str("component", "config").Int("credits", config.PremiumCreditAmount).Msg("non-positive premium credit amount configured; using default")
		config.PremiumCreditAmount = defaultPremiumCredits
	}
	if config.WebhookDedupTTLMinutes <= 0 {
		config.WebhookDedupTTLMinutes = defaultDedupTTLMinutes
	}
	if config.StaleSessionAfterMinutes <= 0 {
		config.StaleSessionAfterMinutes = defaultStaleAfterMinutes
	}
	if strings.TrimSpace(config.StaleSessionSchedule) == "" {
		config.StaleSessionSchedule = defaultSweepSchedule
	}

	return
}
