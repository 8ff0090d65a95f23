package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/projectaudit/engine/internal/api"
	"github.com/projectaudit/engine/internal/api/handlers"
	"github.com/projectaudit/engine/internal/api/types"
	"github.com/projectaudit/engine/internal/api/validators"
	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/internal/queue/tasks"
	"github.com/projectaudit/engine/internal/repository"
	"github.com/projectaudit/engine/internal/services"
	"github.com/projectaudit/engine/internal/similarity"
	"github.com/projectaudit/engine/pkg/config"
	"github.com/projectaudit/engine/pkg/database"
	"github.com/projectaudit/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting project audit engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("db_driver", cfg.DatabaseDriver),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver:  cfg.DatabaseDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: cfg.LogLevel == "debug",
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.DBAutoMigrate {
		if err := models.Migrate(db); err != nil {
			log.Fatal("auto-migration failed", zap.Error(err))
		}
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		if cfg.AppEnv == "production" {
			log.Fatal("JWT_SECRET must be set in production")
		}
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		jwtSecret = []byte("change-me-in-production-please")
	}

	thresholds := similarity.Thresholds{
		Duplicate: cfg.DuplicateThreshold,
		High:      cfg.HighThreshold,
		Medium:    cfg.MediumThreshold,
	}
	if err := thresholds.Validate(); err != nil {
		log.Fatal("invalid similarity thresholds", zap.Error(err))
	}

	// Redis is optional: it caches embeddings and carries rebuild tasks.
	var (
		rdb      *redis.Client
		enqueuer handlers.RebuildEnqueuer
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, embedding cache and task queue disabled", zap.Error(err))
			rdb = nil
		} else {
			client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
			defer client.Close()
			enqueuer = tasks.NewEnqueuer(client)
		}
	}

	selectOpts := similarity.SelectOptions{
		Embedding: similarity.EmbeddingConfig{
			Endpoint: cfg.EmbeddingURL,
			Model:    cfg.EmbeddingModel,
			APIKey:   cfg.EmbeddingAPIKey,
		},
		CacheTTL: cfg.EmbeddingCacheTTL,
	}
	if rdb != nil {
		selectOpts.Redis = rdb
	}
	encoder := similarity.SelectEncoder(ctx, selectOpts, log)
	scorer := similarity.NewScorer(encoder, log)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	pairRepo := repository.NewSimilarityRepository(db)

	// Initialize services
	authSvc := services.NewAuthService(userRepo, jwtSecret)
	projectSvc := services.NewProjectService(projectRepo, userRepo, pairRepo, scorer, thresholds)
	analysisSvc, err := services.NewAnalysisService(projectRepo, pairRepo, thresholds, cfg.AnalysisSource)
	if err != nil {
		log.Fatal("invalid analysis configuration", zap.Error(err))
	}

	status := types.SimilarityStatus{
		Method: string(scorer.Method()),
		Thresholds: map[string]float64{
			"duplicate":         thresholds.Duplicate,
			"high_similarity":   thresholds.High,
			"medium_similarity": thresholds.Medium,
		},
	}
	if scorer.Method() == similarity.MethodEmbedding {
		status.Model = cfg.EmbeddingModel
	}

	// Initialize handlers
	v := validators.New()
	router := api.NewRouter(api.Dependencies{
		HMACSecret:     jwtSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		HealthHandler: handlers.NewHealthHandler(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		AuthHandler:       handlers.NewAuthHandler(authSvc, v),
		ProjectsHandler:   handlers.NewProjectsHandler(projectSvc, v),
		AnalysisHandler:   handlers.NewAnalysisHandler(analysisSvc),
		SimilarityHandler: handlers.NewSimilarityHandler(status, enqueuer, projectSvc),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
