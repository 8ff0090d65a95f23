package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/projectaudit/engine/pkg/config"
	"github.com/projectaudit/engine/pkg/database"
	"github.com/projectaudit/engine/pkg/logger"

	"github.com/projectaudit/engine/internal/queue/tasks"
	"github.com/projectaudit/engine/internal/repository"
	"github.com/projectaudit/engine/internal/services"
	"github.com/projectaudit/engine/internal/similarity"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	db, err := database.Open(ctx, database.Options{
		Driver:  cfg.DatabaseDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: cfg.LogLevel == "debug",
	})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	thresholds := similarity.Thresholds{
		Duplicate: cfg.DuplicateThreshold,
		High:      cfg.HighThreshold,
		Medium:    cfg.MediumThreshold,
	}
	if err := thresholds.Validate(); err != nil {
		log.Fatal("invalid similarity thresholds", zap.Error(err))
	}

	if !cfg.EmbeddingEnabled() {
		log.Warn("no embedding backend configured, rebuilds use lexical similarity")
	}
	encoder := similarity.SelectEncoder(ctx, similarity.SelectOptions{
		Embedding: similarity.EmbeddingConfig{
			Endpoint: cfg.EmbeddingURL,
			Model:    cfg.EmbeddingModel,
			APIKey:   cfg.EmbeddingAPIKey,
		},
		Redis:    rdb,
		CacheTTL: cfg.EmbeddingCacheTTL,
	}, log)

	projectSvc := services.NewProjectService(
		repository.NewProjectRepository(db),
		repository.NewUserRepository(db),
		repository.NewSimilarityRepository(db),
		similarity.NewScorer(encoder, log),
		thresholds,
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
			Logger:      log.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	tasks.NewRebuildTaskHandler(projectSvc).Register(mux)

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	// asynq.Server.Shutdown waits for in-flight tasks.
	srv.Shutdown()
}
