// Command worker relays the outbox to RabbitMQ and stores notifications in
// distributed deployments. Local mode runs both inside caravand.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/caravan/internal/app"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/caravan/pkg/config"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := observability.LoggerFromEnv("caravan-worker")
	if err := run(logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required; local mode runs the worker inside caravand")
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.SubscribeShared(ctx, eventbus.NotificationsQueue, container.NotificationSubscriber); err != nil {
		return err
	}

	processor := container.OutboxProcessor
	logger.Info("starting outbox processor",
		"poll_interval", cfg.OutboxPollInterval,
		"batch_size", cfg.OutboxBatchSize,
		"max_retries", cfg.OutboxMaxRetries,
	)
	if err := processor.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		every(gctx, cfg.OutboxCleanupInterval, func() {
			deleted, err := container.OutboxRepo.DeleteOld(gctx, cfg.OutboxRetentionDays)
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				return
			}
			if deleted > 0 {
				logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
			}
		})
		return nil
	})
	g.Go(func() error {
		every(gctx, cfg.OutboxStatsInterval, func() {
			stats := processor.GetStats()
			logger.Info("outbox stats",
				"running", stats.IsRunning,
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
				"lag_seconds", stats.LagSeconds,
				"last_error", stats.LastError,
			)
		})
		return nil
	})
	if cfg.WorkerHealthAddr != "" {
		g.Go(func() error {
			return serveHealth(gctx, cfg.WorkerHealthAddr, container, logger)
		})
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	processor.Stop()
	return g.Wait()
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func serveHealth(ctx context.Context, addr string, c *app.Container, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"outbox": c.OutboxProcessor.GetStats(),
		})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		health := c.Health.Check(checkCtx)
		status := http.StatusOK
		if health.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Metrics.Snapshot())
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
