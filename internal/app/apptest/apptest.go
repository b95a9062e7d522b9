// Package apptest builds a local-mode container for integration tests.
package apptest

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/caravan/internal/app"
	"github.com/felixgeelhaar/caravan/pkg/config"
	"github.com/stretchr/testify/require"
)

// Config returns a SQLite, in-process configuration rooted in temp dirs.
func Config(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppEnv:              "test",
		LogLevel:            "error",
		DatabaseDriver:      "sqlite",
		SQLitePath:          dir + "/caravan.db",
		LocalMode:           true,
		HTTPAddr:            "127.0.0.1:0",
		JWTSecret:           "test-secret",
		JWTTTL:              time.Hour,
		FileStorageDir:      dir + "/files",
		FileBaseURL:         "http://localhost:8080/api",
		SchedulerInterval:   time.Minute,
		ChatHistoryLimit:    100,
		OutboxPollInterval:  50 * time.Millisecond,
		OutboxBatchSize:     100,
		OutboxMaxRetries:    3,
		OutboxRetentionDays: 1,
	}
}

// NewContainer wires a container over Config(t) and closes it on cleanup.
func NewContainer(t *testing.T) *app.Container {
	t.Helper()
	c, err := app.NewContainer(context.Background(), Config(t), nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}
