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

	"github.com/wolfman30/support-escalation-bot/cmd/mainconfig"
	"github.com/wolfman30/support-escalation-bot/internal/api/router"
	"github.com/wolfman30/support-escalation-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

func main() {
	if err := mainconfig.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting support bot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
	)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, logger,
		bootstrap.WithAWSConfigLoader(mainconfig.LoadAWSConfig),
		bootstrap.WithRedisPing(),
	)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(cfg, app, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("server error", "error", err)
		app.Close()
		os.Exit(1)
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func newHandler(cfg *appconfig.Config, app *bootstrap.App, logger *logging.Logger) http.Handler {
	return router.New(&router.Config{
		Logger:             logger,
		Webhook:            conversation.NewHandler(app.Router, app.Store, cfg.TwitterConsumerSecret, logger),
		MetricsHandler:     app.MetricsHandler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigin,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		RequestTimeout:     cfg.RequestTimeout,
	})
}
