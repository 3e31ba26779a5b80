package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/internal/history"
	"github.com/wolfman30/support-escalation-bot/internal/notify"
	"github.com/wolfman30/support-escalation-bot/internal/observability/metrics"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// AWSConfigLoader resolves the AWS SDK configuration.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// App holds every long-lived service a binary needs.
type App struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.SupportMetrics

	Redis      *redis.Client
	Store      history.Store
	Classifier *conversation.IntentClassifier
	Notifier   notify.Notifier
	// Slack is nil unless SLACK_WEBHOOK_URL is set.
	Slack  *notify.SlackNotifier
	Router *conversation.Router

	closers []io.Closer
}

type options struct {
	awsLoader   AWSConfigLoader
	verifyRedis bool
}

type Option func(*options)

// WithAWSConfigLoader overrides how AWS configuration is loaded. It is only
// called when an AWS-backed component is configured.
func WithAWSConfigLoader(fn AWSConfigLoader) Option {
	return func(o *options) {
		if fn != nil {
			o.awsLoader = fn
		}
	}
}

// WithRedisPing pings Redis at startup and runs without it when unreachable.
func WithRedisPing() Option {
	return func(o *options) {
		o.verifyRedis = true
	}
}

func defaultAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// New wires the store, classifier, notifier and router from config. Close
// releases everything New opened.
func New(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	o := options{awsLoader: defaultAWSConfig}
	for _, opt := range opts {
		opt(&o)
	}
	loadAWS := cachedAWSLoader(o.awsLoader, cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.NewSupportMetrics(reg),
	}

	if client := BuildRedisClient(ctx, cfg, logger, o.verifyRedis); client != nil {
		app.Redis = client
		app.closers = append(app.closers, client)
	}

	store, err := BuildStore(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, store)

	llm, llmCloser, err := BuildLLMClient(ctx, cfg, logger, loadAWS)
	if err != nil {
		app.Close()
		return nil, err
	}
	if llmCloser != nil {
		app.closers = append(app.closers, llmCloser)
	}
	app.Classifier = BuildClassifier(cfg, llm, logger, app.Metrics)

	app.Notifier, app.Slack, err = BuildNotifier(ctx, cfg, logger, loadAWS)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Router, err = BuildRouter(cfg, app.Classifier, app.Store, app.Notifier, app.Redis, logger, app.Metrics)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// MetricsHandler serves the app's registry.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; using in-process locking", "error", err)
		client.Close()
		return nil
	}
	return client
}

func cachedAWSLoader(load AWSConfigLoader, cfg *appconfig.Config) func(context.Context) (aws.Config, error) {
	var (
		once   sync.Once
		awsCfg aws.Config
		err    error
	)
	return func(ctx context.Context) (aws.Config, error) {
		once.Do(func() {
			awsCfg, err = load(ctx, cfg)
			if err != nil {
				err = fmt.Errorf("bootstrap: load aws config: %w", err)
			}
		})
		return awsCfg, err
	}
}
