package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serverKeys = []string{
	"APP_ENV", "LOG_LEVEL", "DATABASE_URL", "DATABASE_DRIVER", "SQLITE_PATH",
	"REDIS_URL", "RABBITMQ_URL", "HTTP_ADDR", "CORS_ALLOWED_ORIGINS",
	"JWT_SECRET", "JWT_TTL", "FILE_STORAGE_DIR", "FILE_BASE_URL",
	"SCHEDULER_ENABLED", "SCHEDULER_INTERVAL", "CHAT_HISTORY_LIMIT",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES",
	"OUTBOX_STATS_INTERVAL", "OUTBOX_RETENTION_DAYS", "OUTBOX_CLEANUP_INTERVAL",
	"OUTBOX_PROCESSOR_ENABLED", "WORKER_HEALTH_ADDR",
}

func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, serverKeys)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.LocalMode)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 100, cfg.ChatHistoryLimit)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.True(t, cfg.SchedulerEnabled)
	assert.True(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Postgres(t *testing.T) {
	clearEnv(t, serverKeys)
	t.Setenv("DATABASE_URL", "postgres://caravan@localhost/caravan")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("CHAT_HISTORY_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.LocalMode)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 100, cfg.ChatHistoryLimit, "invalid numbers fall back to the default")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t, serverKeys)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadClient(t *testing.T) {
	clearEnv(t, []string{"CARAVAN_API_URL", "CARAVAN_WS_URL", "CARAVAN_POLL_DISCOVERY_INTERVAL",
		"CARAVAN_POLL_DISCOVERY_WARMUP", "CARAVAN_READ_ATTEMPTS", "CARAVAN_RECONNECT_DELAY"})

	cfg := LoadClient()
	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WSURL)
	assert.Equal(t, 3, cfg.ReadAttempts)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, Cadence{15 * time.Second, 5 * time.Second}, cfg.Discovery)
	assert.Equal(t, Cadence{12 * time.Second, 4 * time.Second}, cfg.MyPlans)
	assert.Equal(t, Cadence{10 * time.Second, 3 * time.Second}, cfg.Detail)
	assert.Equal(t, Cadence{8 * time.Second, 3 * time.Second}, cfg.Polls)
	assert.Equal(t, Cadence{10 * time.Second, 4 * time.Second}, cfg.Expenses)

	t.Setenv("CARAVAN_API_URL", "https://trips.example/api/")
	t.Setenv("CARAVAN_POLL_DISCOVERY_INTERVAL", "1m")
	cfg = LoadClient()
	assert.Equal(t, "https://trips.example/api", cfg.APIURL)
	assert.Equal(t, "wss://trips.example/ws", cfg.WSURL)
	assert.Equal(t, time.Minute, cfg.Discovery.Interval)
}

func TestClientConfig_SetAPIURL(t *testing.T) {
	cfg := &ClientConfig{}
	cfg.SetAPIURL("http://127.0.0.1:9090/api/")
	assert.Equal(t, "http://127.0.0.1:9090/api", cfg.APIURL)
	assert.Equal(t, "ws://127.0.0.1:9090/ws", cfg.WSURL)
}
