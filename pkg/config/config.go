// Package config loads process configuration from the environment, with a
// .env file in the working directory taken into account when present.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the server and worker configuration.
type Config struct {
	AppEnv   string
	LogLevel string

	// Database. An empty DatabaseURL selects SQLite (local mode).
	DatabaseURL    string
	DatabaseDriver string
	SQLitePath     string
	LocalMode      bool

	// Optional infrastructure; empty disables it.
	RedisURL    string
	RabbitMQURL string

	HTTPAddr           string
	CORSAllowedOrigins []string

	JWTSecret string
	JWTTTL    time.Duration

	FileStorageDir string
	FileBaseURL    string

	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	ChatHistoryLimit int

	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxStatsInterval    time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	WorkerHealthAddr string
}

const devJWTSecret = "caravan-dev-secret-change-me"

// Load reads the server configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	databaseURL := getEnv("DATABASE_URL", "")
	driver := getEnv("DATABASE_DRIVER", "")
	if driver == "" {
		driver = "postgres"
		if databaseURL == "" || strings.HasPrefix(databaseURL, "sqlite://") {
			driver = "sqlite"
		}
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:    databaseURL,
		DatabaseDriver: driver,
		SQLitePath:     getEnv("SQLITE_PATH", ""),
		LocalMode:      driver == "sqlite",

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getDurationEnv("JWT_TTL", 24*time.Hour),

		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./data/files"),
		FileBaseURL:    strings.TrimRight(getEnv("FILE_BASE_URL", "http://localhost:8080/api"), "/"),

		SchedulerEnabled:  getBoolEnv("SCHEDULER_ENABLED", true),
		SchedulerInterval: getDurationEnv("SCHEDULER_INTERVAL", time.Minute),

		ChatHistoryLimit: getIntEnv("CHAT_HISTORY_LIMIT", 100),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 250*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:    getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getListEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
