package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bookflow/internal/api"
	"bookflow/internal/bot"
	"bookflow/internal/config"
	"bookflow/internal/database"
	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/logging"
	"bookflow/internal/metrics"
	"bookflow/internal/models"
	"bookflow/internal/repository"
	"bookflow/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	redisClient, draftRepo := initDraftRepository(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	opts := []api.Option{
		api.WithRateLimit(cfg.API.RateLimit.RPS, cfg.API.RateLimit.Burst),
		api.WithLogger(logger),
	}
	if redisClient != nil {
		opts = append(opts, api.WithRedisCache(redisClient, time.Duration(cfg.API.CacheTTLSeconds)*time.Second))
	}
	client := api.NewClient(cfg.API, opts...)

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: handler failed")
	})

	bookingService := service.NewBookingService(client, eventBus, logger)
	appointmentService := service.NewAppointmentService(client, db, models.DefaultAppointmentsMaxAge*time.Second, logger)
	appointmentService.Subscribe(eventBus)

	sessions := service.NewSessionManager(service.SessionOptions{
		API:             client,
		Submitter:       bookingService,
		Repository:      draftRepo,
		Events:          eventBus,
		StaffAssignment: cfg.Booking.StaffAssignment,
		DefaultTimeZone: cfg.Booking.DefaultTimeZone,
		Logger:          logger,
	})

	healthServer := startHealthServer(cfg, db, redisClient, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
	}()

	return startBot(ctx, cfg, sessions, client, appointmentService, draftRepo, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()
	return cfg, &logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Failed to create database directory")
		return err
	}
	return nil
}

// initDraftRepository prefers Redis and falls back to process memory while it is down.
func initDraftRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.DraftRepository) {
	ttl := time.Duration(cfg.Booking.DraftTTLSeconds) * time.Second
	fallback := repository.NewMemoryDraftRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Warn().Msg("Redis is not configured, drafts will not survive a restart")
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	primary := repository.NewRedisDraftRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverDraftRepository(primary, fallback, logger)
}

func startHealthServer(cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *http.Server {
	checks := map[string]metrics.Check{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.HealthCheckPort),
		Handler:           metrics.NewRouter(checks, cfg.Monitoring.PrometheusEnabled),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Health server error")
		}
	}()
	return srv
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	sessions *service.SessionManager,
	client *api.Client,
	appointments *service.AppointmentService,
	limiter bot.RateLimiter,
	logger *zerolog.Logger,
) error {
	sender, err := bot.NewTelegramSender(cfg.Telegram)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create BotAPI")
		return err
	}

	telegramBot, err := bot.NewBot(bot.Deps{
		Telegram:     service.NewTelegramService(sender),
		Config:       cfg,
		Sessions:     sessions,
		Catalog:      client,
		Appointments: appointments,
		Limiter:      limiter,
		Logger:       logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create bot")
		return err
	}

	logger.Info().Msg("Bot started")
	telegramBot.Start(ctx)
	telegramBot.Stop()

	logger.Info().Msg("Shutdown complete.")
	return nil
}
