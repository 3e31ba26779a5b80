package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// WebhookNotifier POSTs escalations as JSON to an automation endpoint
// (for example an n8n workflow).
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewWebhookNotifier(url string, httpClient *http.Client, logger *logging.Logger) *WebhookNotifier {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookNotifier{url: url, httpClient: httpClient, logger: logger}
}

type webhookPayload struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Escalation
}

func (w *WebhookNotifier) Escalate(ctx context.Context, esc Escalation) error {
	if w == nil {
		return errors.New("notify: webhook notifier not configured")
	}
	body, err := json.Marshal(webhookPayload{
		EventID:    uuid.NewString(),
		Type:       "ticket.escalated",
		Escalation: esc.withDefaults(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	w.logger.Info("escalation sent to webhook", "ticket_id", esc.TicketID, "status", resp.StatusCode)
	return nil
}
