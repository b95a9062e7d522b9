package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONCarriesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatJSON,
		Output:         &buf,
		ServiceName:    "caravand",
		ServiceVersion: "1.2.3",
	})

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	logger.InfoContext(ctx, "plan created", "plan_id", "p1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "plan created", entry["msg"])
	assert.Equal(t, "caravand", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "corr-1", entry[CorrelationIDKey])
	assert.Equal(t, "req-1", entry[RequestIDKey])
	assert.Equal(t, "user-1", entry[UserIDKey])
	assert.Equal(t, "p1", entry["plan_id"])
}

func TestNewLogger_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelWarn, Format: LogFormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "key=value")
}

func TestLoggerFromEnv(t *testing.T) {
	t.Setenv("CARAVAN_ENV", "production")
	t.Setenv("CARAVAN_LOG_LEVEL", "debug")
	logger := LoggerFromEnv("worker")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := LogOperation(NewLogger(LogConfig{Format: LogFormatText, Output: &buf}), "accept", "plan_id", "p1")
	logger.Info("done")
	assert.Contains(t, buf.String(), "operation=accept")
	assert.Contains(t, buf.String(), "plan_id=p1")
}

func TestHealthRegistry_Check(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("database", PingChecker("database", true, func(context.Context) error { return nil }))
	reg.Register("redis", PingChecker("redis", false, func(context.Context) error { return errors.New("down") }))

	health := reg.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Equal(t, HealthStatusDegraded, health.Checks["redis"].Status)
	assert.Contains(t, health.Checks["redis"].Message, "down")

	reg.Register("database", PingChecker("database", true, func(context.Context) error { return errors.New("gone") }))
	assert.Equal(t, HealthStatusUnhealthy, reg.Check(context.Background()).Status)
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background(), "parent")
	assert.Equal(t, "parent", CorrelationIDFromContext(ctx))
	assert.NotEmpty(t, RequestIDFromContext(ctx))

	fresh := NewRequestContext(context.Background(), "")
	assert.NotEmpty(t, CorrelationIDFromContext(fresh))
	assert.Empty(t, UserIDFromContext(fresh))
}
