package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/support-escalation-bot/cmd/mainconfig"
	"github.com/wolfman30/support-escalation-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/internal/worker/monitor"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

func main() {
	if err := mainconfig.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("monitor exited", "error", err)
		os.Exit(1)
	}
	logger.Info("monitor shut down cleanly")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	app, err := bootstrap.New(ctx, cfg, logger,
		bootstrap.WithAWSConfigLoader(mainconfig.LoadAWSConfig),
		bootstrap.WithRedisPing(),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	client, err := bootstrap.BuildTwitterClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := monitor.New(client, app.Router, app.Store, logger,
		monitor.WithInterval(cfg.PollInterval),
		monitor.WithBatchSize(cfg.PollBatchSize),
		monitor.WithProcessedCache(cfg.PollProcessedCache),
		monitor.WithMetrics(app.Metrics),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func metricsRouter(app *bootstrap.App) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", app.MetricsHandler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
