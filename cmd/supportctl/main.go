package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfman30/support-escalation-bot/cmd/mainconfig"
	"github.com/wolfman30/support-escalation-bot/internal/app/bootstrap"
	"github.com/wolfman30/support-escalation-bot/internal/cli"
	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

func main() {
	if err := mainconfig.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{
		Level:  cfg.LogLevel,
		Format: "text",
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRoot(loader(cfg, logger))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loader(cfg *appconfig.Config, logger *logging.Logger) cli.Loader {
	return func(ctx context.Context) (*cli.Services, error) {
		app, err := bootstrap.New(ctx, cfg, logger, bootstrap.WithAWSConfigLoader(mainconfig.LoadAWSConfig))
		if err != nil {
			return nil, err
		}
		svc := &cli.Services{
			Processor:  app.Router,
			History:    app.Store,
			Classifier: app.Classifier,
			Close:      app.Close,
		}
		if app.Slack != nil {
			svc.Tester = app.Slack
		}
		return svc, nil
	}
}
