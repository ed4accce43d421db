// Package main provides the entry point for the ASCVD risk HTTP server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ascvd-risk-server/internal/api"
	"github.com/ascvd-risk-server/internal/cache"
	"github.com/ascvd-risk-server/internal/config"
	"github.com/ascvd-risk-server/internal/database"
	"github.com/ascvd-risk-server/internal/repository"
	"github.com/ascvd-risk-server/internal/risk"
)

func main() {
	manager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := manager.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg := manager.GetConfig()

	logger := newLogger(&cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	runner, err := database.NewMigrationRunner(manager.DatabaseURL(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize migrations")
	}
	if err := runner.Up(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	runner.Close()

	store := repository.NewPatientRepository(db.Pool, logger)

	memory := cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.DefaultTTL)
	var redisCache *cache.RedisCache
	if cfg.Cache.RedisEnabled {
		redisCache, err = cache.NewRedisCache(&cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
	}
	results := cache.NewTiered(memory, redisCache)

	engine := risk.NewEngine(logger)
	server := api.NewServer(cfg, engine, store, results, db, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg *config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if strings.ToLower(cfg.Format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
