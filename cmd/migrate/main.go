package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/pkg/config"
	"github.com/projectaudit/engine/pkg/database"
	"github.com/projectaudit/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(context.Background(), database.Options{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := models.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
