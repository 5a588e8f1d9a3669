/**
 * @description
 * Entry point for the PaperMind backend. It loads configuration, connects the database,
 * optional Redis and RabbitMQ clients, wires the application services, starts the
 * stale-session scheduler and serves HTTP until SIGINT or SIGTERM.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JojoDuke/papermind-ai-backend/internal/api"
	"github.com/JojoDuke/papermind-ai-backend/internal/app"
	"github.com/JojoDuke/papermind-ai-backend/internal/config"
	"github.com/JojoDuke/papermind-ai-backend/internal/logging"
	"github.com/JojoDuke/papermind-ai-backend/internal/store"
	"github.com/JojoDuke/papermind-ai-backend/pkg/rabbitmq"
	"github.com/JojoDuke/papermind-ai-backend/pkg/wetroclient"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	boot := logger.With().Str("component", "bootstrap").Logger()
	if err != nil {
		boot.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	boot.Info().Str("port", cfg.ServerPort).Msg("starting papermind backend")

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		boot.Fatal().Err(err).Msg("database url parse failed")
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Supabase's transaction pooler does not support prepared statements.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		boot.Fatal().Err(err).Msg("database connection failed")
	}
	defer dbpool.Close()
	boot.Info().Msg("database pool ready")

	repository := store.NewRepository(dbpool)

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	opts := app.ReconcilerOptions{
		Credits:   cfg.PremiumCreditAmount,
		Publisher: publisher,
		Exchange:  cfg.EventsExchange,
	}
	if cfg.WebhookAtomicUpdates {
		opts.Transactor = repository
	}
	if cfg.WebhookDedupEnabled {
		dedup, closeDedup := newDeduplicator(cfg, boot)
		defer closeDedup()
		opts.Dedup = dedup
	}
	reconciler := app.NewReconciler(repository, repository, logger, opts)

	var verifier *api.SignatureVerifier
	if strings.TrimSpace(cfg.DodoWebhookSecret) != "" {
		verifier, err = api.NewSignatureVerifier(cfg.DodoWebhookSecret)
		if err != nil {
			boot.Fatal().Err(err).Msg("invalid DODO_WEBHOOK_SECRET")
		}
	}

	wetro := wetroclient.NewClient(cfg.WetroAPIBaseURL, cfg.WetroAPIToken)
	documents := app.NewDocumentService(wetro, cfg.WetroQueryModel, cfg.WetroDefaultCollectionID, logger)

	scheduler := app.NewScheduler(app.NewJobs(repository, cfg.StaleSessionAfter(), logger), cfg.StaleSessionSchedule, logger)
	if err := scheduler.Start(); err != nil {
		boot.Fatal().Err(err).Msg("scheduler start failed")
	}

	if cfg.SupabaseJWTSecret == "" {
		boot.Warn().Msg("SUPABASE_JWT_SECRET is not set; document routes are unauthenticated")
	}
	router := api.NewRouter(
		api.NewHandler(documents, logger),
		api.NewWebhookHandler(reconciler, verifier, logger),
		api.RouterOptions{
			AllowedOrigins: cfg.AllowedOrigins(),
			JWTSecret:      cfg.SupabaseJWTSecret,
			JWTIssuer:      cfg.SupabaseIssuer(),
			Logger:         logger,
		},
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("component", "http").Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Str("component", "http").Err(err).Msg("server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Str("component", "http").Msg("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Str("component", "http").Err(err).Msg("shutdown failed")
	}
	<-scheduler.Stop().Done()

	logger.Info().Str("component", "http").Msg("shutdown complete")
}

func newPublisher(cfg config.Config, logger zerolog.Logger) rabbitmq.Publisher {
	boot := logger.With().Str("component", "bootstrap").Logger()
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		boot.Info().Msg("RABBITMQ_URL not set; payment events will not be published")
		return rabbitmq.NewEventProducerFallback(logger)
	}
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
	if err != nil {
		boot.Warn().Err(err).Msg("rabbitmq producer unavailable; using fallback")
		return rabbitmq.NewEventProducerFallback(logger)
	}
	boot.Info().Msg("rabbitmq producer connected")
	return producer
}

// newDeduplicator prefers Redis so replicas share claimed keys, and falls back to memory.
func newDeduplicator(cfg config.Config, boot zerolog.Logger) (app.Deduplicator, func()) {
	noop := func() {}
	if cfg.RedisURL == "" {
		boot.Warn().Msg("REDIS_URL not set; webhook deduplication is per-process")
		return app.NewMemoryDeduplicator(cfg.DedupTTL()), noop
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		boot.Warn().Err(err).Msg("redis url parse failed; webhook deduplication is per-process")
		return app.NewMemoryDeduplicator(cfg.DedupTTL()), noop
	}

	client := redis.NewClient(redisOptions)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		boot.Warn().Err(err).Msg("redis ping failed; webhook deduplication is per-process")
		client.Close()
		return app.NewMemoryDeduplicator(cfg.DedupTTL()), noop
	}

	boot.Info().Msg("redis connected")
	return app.NewRedisDeduplicator(client, cfg.DedupKeyPrefix, cfg.DedupTTL()), func() { client.Close() }
}
