package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadinbox/internal/bot"
	"leadinbox/internal/config"
	"leadinbox/internal/constants"
	"leadinbox/internal/database"
	"leadinbox/internal/models"
	"leadinbox/internal/retry"
	"leadinbox/internal/service"
	"leadinbox/internal/tracing"
	"leadinbox/pkg/telegram"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Set at build time via -ldflags.
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("leadinbox %s (built %s)\n", version, buildTime)
		return
	}

	// A missing .env is fine; the file only exists in development.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})

	if err := run(*configPath, *verbose, logger); err != nil {
		logger.WithError(err).Fatal("Fatal error")
	}
}

func run(configPath string, verbose bool, logger *logrus.Logger) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := logrus.InfoLevel
	if cfg.LogLevel != "" {
		if parsed, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"version": version,
		"dry_run": cfg.Telegram.DryRun,
	}).Info("Starting leadinbox")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer := tracing.NewManager(cfg.Tracing, logger)
	if err := tracer.Initialize(ctx); err != nil {
		logger.WithError(err).Warn("Tracing unavailable, continuing without it")
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Tracing shutdown failed")
		}
	}()

	db, err := openDatabase(ctx, cfg.Database.Path, cfg.Retry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Database close failed")
		}
	}()

	chatClient, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.DryRun, logger)
	if err != nil {
		return fmt.Errorf("failed to create telegram client: %w", err)
	}

	tokens := service.NewTokenRegistry(db, logger)
	notifier := service.NewNotifier(db, chatClient, cfg.Notify, logger)
	intake := service.NewIntakeGateway(db, tokens, notifier, logger)
	lifecycle := service.NewLifecycle(db, notifier, logger)
	queries := service.NewQueryService(db)

	notifier.Start(ctx)
	defer notifier.Stop()

	commandBot := bot.New(chatClient, tokens, lifecycle, queries, cfg.Server.PublicURL, logger)
	if !chatClient.DryRun() {
		go commandBot.Run(ctx, cfg.Telegram.PollTimeoutSec)
	} else {
		logger.Info("Dry-run mode, bot command loop disabled")
	}

	server := NewServer(cfg.Server, intake, tokens, queries, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server shutdown incomplete")
	}
	return nil
}

// openDatabase retries transient sqlite failures at startup, which mostly
// means another instance still holds the file lock during a restart.
func openDatabase(ctx context.Context, path string, retryCfg models.RetryConfig, logger *logrus.Logger) (*database.Database, error) {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(retryCfg.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(retryCfg.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  retryCfg.MaxAttempts,
		Jitter:       true,
	})

	var db *database.Database
	err := backoff.RetryWithPredicate(ctx, func() error {
		var err error
		db, err = database.New(path)
		if err != nil {
			logger.WithError(err).Warn("Database open failed, retrying")
		}
		return err
	}, database.IsRetryableError)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_ = os.Chmod(path, 0600)
	return db, nil
}
