//go:build integration

package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/pkg/database"
)

const postgresImage = "postgres:16-alpine"

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// NewPostgresDB returns a migrated connection to a PostgreSQL container
// shared by the whole test run. Tables are truncated on every call.
func NewPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	pgOnce.Do(func() {
		pgDSN, pgErr = startPostgres()
	})
	require.NoError(t, pgErr, "failed to start postgres container")

	db, err := database.Open(context.Background(), database.Options{
		Driver: database.DriverPostgres,
		DSN:    pgDSN,
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	require.NoError(t, db.Exec("TRUNCATE project_similarity, projects, users RESTART IDENTITY").Error)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func startPostgres() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("projectaudit_test"),
		tcpostgres.WithUsername("audit"),
		tcpostgres.WithPassword("test_password"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", err
	}
	// The container lives for the rest of the process; Ryuk reaps it.
	return container.ConnectionString(ctx, "sslmode=disable")
}
