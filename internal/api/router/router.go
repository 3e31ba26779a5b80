package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	httpmiddleware "github.com/wolfman30/support-escalation-bot/internal/http/middleware"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *conversation.Handler
	MetricsHandler http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// RateLimitRPS <= 0 disables rate limiting on the webhook.
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/", cfg.Webhook.Health)
	r.Get("/health", cfg.Webhook.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/webhook", func(wh chi.Router) {
		wh.Get("/test", cfg.Webhook.WebhookTest)
		wh.Group(func(ingest chi.Router) {
			if cfg.RateLimitRPS > 0 {
				ingest.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
			}
			ingest.Post("/twitter", cfg.Webhook.Twitter)
		})
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/users/{username}", func(u chi.Router) {
				u.Get("/history", cfg.Webhook.UserHistory)
				u.Get("/state", cfg.Webhook.UserState)
			})
		})
	}

	return r
}
