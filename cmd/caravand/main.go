// Command caravand runs the caravan API server: REST routes, the STOMP chat
// broker, the plan lifecycle scheduler and, in local mode, the outbox relay.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/caravan/adapter/api"
	"github.com/felixgeelhaar/caravan/internal/app"
	"github.com/felixgeelhaar/caravan/pkg/config"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := observability.LoggerFromEnv("caravand")
	if err := run(logger); err != nil {
		logger.Error("caravand failed", "error", err)
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

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	brokerCfg := api.DefaultBrokerConfig()
	brokerCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	broker := api.NewContainerBroker(brokerCfg, container)

	// Every API instance relays plan hints to its own subscribers.
	if err := container.Subscribe(ctx, api.NewPlanRelay(broker, logger)); err != nil {
		return err
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.HTTPAddr
	serverCfg.CORSAllowedOrigins = cfg.CORSAllowedOrigins
	server := api.NewServer(serverCfg, container, broker, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.SchedulerEnabled {
		g.Go(func() error {
			if err := container.Scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if container.Bus != nil && cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(gctx); err != nil {
			return err
		}
		logger.Info("outbox relay running in process")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
