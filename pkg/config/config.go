package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required"`
	DBAutoMigrate  bool   `mapstructure:"DB_AUTO_MIGRATE"`

	// Redis backs the embedding cache and the asynq queue; both are off when empty.
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST" validate:"gte=1"`

	EmbeddingURL      string        `mapstructure:"EMBEDDING_URL" validate:"omitempty,url"`
	EmbeddingModel    string        `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingAPIKey   string        `mapstructure:"EMBEDDING_API_KEY"`
	EmbeddingCacheTTL time.Duration `mapstructure:"EMBEDDING_CACHE_TTL"`

	DuplicateThreshold float64 `mapstructure:"SIMILARITY_DUPLICATE_THRESHOLD" validate:"gte=0,lte=100,gtefield=HighThreshold"`
	HighThreshold      float64 `mapstructure:"SIMILARITY_HIGH_THRESHOLD" validate:"gte=0,lte=100,gtefield=MediumThreshold"`
	MediumThreshold    float64 `mapstructure:"SIMILARITY_MEDIUM_THRESHOLD" validate:"gte=0,lte=100"`

	// AnalysisSource selects what the analysis report reads: the score cached on
	// each project, or the pairwise similarity table.
	AnalysisSource string `mapstructure:"ANALYSIS_SOURCE" validate:"required,oneof=cached pairwise"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_DRIVER",
	"DATABASE_URL",
	"DB_AUTO_MIGRATE",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"JWT_SECRET",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"EMBEDDING_URL",
	"EMBEDDING_MODEL",
	"EMBEDDING_API_KEY",
	"EMBEDDING_CACHE_TTL",
	"SIMILARITY_DUPLICATE_THRESHOLD",
	"SIMILARITY_HIGH_THRESHOLD",
	"SIMILARITY_MEDIUM_THRESHOLD",
	"ANALYSIS_SOURCE",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "projectaudit.db")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("EMBEDDING_CACHE_TTL", "168h")
	v.SetDefault("SIMILARITY_DUPLICATE_THRESHOLD", 92.0)
	v.SetDefault("SIMILARITY_HIGH_THRESHOLD", 78.0)
	v.SetDefault("SIMILARITY_MEDIUM_THRESHOLD", 65.0)
	v.SetDefault("ANALYSIS_SOURCE", "cached")

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Durations may arrive as plain strings from the environment.
	for key, dst := range map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT":    &c.ShutdownTimeout,
		"EMBEDDING_CACHE_TTL": &c.EmbeddingCacheTTL,
	} {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// EmbeddingEnabled reports whether an embedding backend has been configured.
func (c *Config) EmbeddingEnabled() bool {
	return c.EmbeddingURL != ""
}
