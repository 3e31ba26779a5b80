package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/support-escalation-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

func TestNewHandlerServesWebhookAndMetrics(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{
		StoreDriver:  "memory",
		BrandName:    "Mudrex",
		SupportEmail: "help@mudrex.com",
		FAQURL:       "https://mudrex.com/faq",
		RateLimitRPS: 0,
	}
	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	handler := newHandler(cfg, app, logger)

	req := httptest.NewRequest(http.MethodPost, "/webhook/twitter",
		strings.NewReader(`{"username":"alice","message":"My ticket is #12345","is_dm":true}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"escalated":true`) {
		t.Fatalf("expected escalation, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "supportbot_router_escalations_total") {
		t.Fatalf("expected escalation counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collectors to be registered")
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/users/alice/state", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected admin routes to be disabled without a secret, got %d", rr.Code)
	}
}
