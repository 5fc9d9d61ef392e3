package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shelfsync/internal/config"
	"shelfsync/internal/database"
	"shelfsync/internal/domain"
	"shelfsync/internal/esl"
	"shelfsync/internal/events"
	"shelfsync/internal/logging"
	"shelfsync/internal/metrics"
	"shelfsync/internal/models"
	"shelfsync/internal/notify"
	"shelfsync/internal/repository"
	"shelfsync/internal/scheduler"
	"shelfsync/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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
		defer (func() { _ = closer.Close() })()
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	stores, err := loadStores(cfg, &logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, stores, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	limiter := initLimiter(redisClient, &logger)
	catalog := esl.NewClient(cfg.Catalog, limiter, &logger)

	bus := events.NewEventBus()
	if err := subscribeNotifier(cfg, bus, &logger); err != nil {
		return err
	}

	syncProcessor := worker.NewProcessor(db, catalog, redisClient, bus, &logger)
	syncProcessor.SetPollInterval(time.Duration(cfg.Syncer.PollIntervalSeconds) * time.Second)
	syncProcessor.SetBatchSize(cfg.Syncer.BatchSize)
	go syncProcessor.Start(ctx)

	scheduleProcessor := scheduler.NewProcessor(db, catalog, bus, &logger)
	scheduleProcessor.SetPollInterval(time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second)
	scheduleProcessor.SetRetryPolicy(backoffPolicy(cfg.Syncer.Backoff))
	go scheduleProcessor.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	logger.Info().Msg("worker started")
	<-ctx.Done()
	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "worker-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create exports directory")
		return err
	}
	return nil
}

func loadStores(cfg *config.Config, logger *zerolog.Logger) ([]models.Store, error) {
	storesPath := os.Getenv("STORES_PATH")
	if storesPath == "" {
		storesPath = cfg.StoresFile
	}

	data, err := os.ReadFile(storesPath)
	if err != nil {
		logger.Error().Err(err).Str("stores_path", storesPath).Msg("read stores")
		return nil, err
	}

	var storesConfig struct {
		Stores []models.Store `yaml:"stores"`
	}
	if err := yaml.Unmarshal(data, &storesConfig); err != nil {
		logger.Error().Err(err).Str("stores_path", storesPath).Msg("parse stores")
		return nil, err
	}

	for _, s := range storesConfig.Stores {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return nil, fmt.Errorf("store %d: invalid timezone %q", s.ID, s.Timezone)
		}
	}

	return storesConfig.Stores, nil
}

func initDatabase(cfg *config.Config, stores []models.Store, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	db.SetMaxRetries(cfg.Syncer.MaxRetries)

	for i := range stores {
		if err := db.UpsertStore(context.Background(), &stores[i]); err != nil {
			logger.Error().Err(err).Int64("store_id", stores[i].ID).Msg("upsert store")
		}
	}
	return db, nil
}

func backoffPolicy(cfg config.BackoffConfig) worker.RetryPolicy {
	return worker.RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: time.Duration(cfg.InitialSeconds) * time.Second,
		MaxDelay:     time.Duration(cfg.MaxSeconds) * time.Second,
		Multiplier:   cfg.Multiplier,
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initLimiter prefers the shared redis window so the outbound vendor
// limit holds across processes, falling back to per-process counting.
func initLimiter(redisClient *redis.Client, logger *zerolog.Logger) domain.LimiterRepository {
	memory := repository.NewMemoryLimiterRepository()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverLimiterRepository(
		repository.NewRedisLimiterRepository(redisClient),
		memory,
		logger,
	)
}

func subscribeNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) error {
	if !cfg.Telegram.Enabled {
		return nil
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	if err != nil {
		logger.Error().Err(err).Msg("telegram notifier init failed")
		return err
	}
	notifier.Subscribe(bus)
	logger.Info().Msg("telegram notifier subscribed")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
