package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// SlackConfig configures the incoming-webhook notifier.
type SlackConfig struct {
	WebhookURL    string
	Channel       string
	TicketURLBase string
	HTTPClient    *http.Client
}

// SlackNotifier posts Block Kit escalation messages to an incoming webhook.
type SlackNotifier struct {
	webhookURL    string
	channel       string
	ticketURLBase string
	httpClient    *http.Client
	logger        *logging.Logger
}

// NewSlackNotifier returns nil when no webhook URL is configured.
func NewSlackNotifier(cfg SlackConfig, logger *logging.Logger) *SlackNotifier {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{
		webhookURL:    cfg.WebhookURL,
		channel:       cfg.Channel,
		ticketURLBase: cfg.TicketURLBase,
		httpClient:    client,
		logger:        logger,
	}
}

func (s *SlackNotifier) Escalate(ctx context.Context, esc Escalation) error {
	if s == nil {
		return errors.New("notify: slack notifier not configured")
	}
	esc = esc.withDefaults()
	msg := &slack.WebhookMessage{
		Channel: s.channel,
		Text:    fmt.Sprintf("Ticket #%s escalated by %s", esc.TicketID, esc.Handle()),
		Blocks:  &slack.Blocks{BlockSet: s.escalationBlocks(esc)},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.httpClient, msg); err != nil {
		s.logger.Error("slack escalation failed", "error", err, "ticket_id", esc.TicketID)
		return fmt.Errorf("notify: slack webhook: %w", err)
	}
	s.logger.Info("escalation sent to slack", "ticket_id", esc.TicketID, "username", esc.Username)
	return nil
}

// SendTest posts a plain connectivity check message.
func (s *SlackNotifier) SendTest(ctx context.Context) error {
	if s == nil {
		return errors.New("notify: slack notifier not configured")
	}
	msg := &slack.WebhookMessage{
		Channel: s.channel,
		Text:    "✅ Support bot is connected to Slack!",
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.httpClient, msg); err != nil {
		return fmt.Errorf("notify: slack test message: %w", err)
	}
	return nil
}

func (s *SlackNotifier) escalationBlocks(esc Escalation) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "🚨 Twitter Ticket Escalation", true, false),
	)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*User:*\n"+esc.Handle(), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Ticket:*\n#"+esc.TicketID, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Platform:*\n"+esc.Platform, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Time:*\n"+esc.At.Format("2006-01-02 15:04:05 MST"), false, false),
	}
	blocks := []slack.Block{header, slack.NewSectionBlock(nil, fields, nil)}

	if esc.OriginalMessage != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Original Message:*\n> "+esc.OriginalMessage, false, false),
			nil, nil,
		))
	}
	if esc.PostURL != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("<%s|View Tweet>", esc.PostURL), false, false),
			nil, nil,
		))
	}
	if s.ticketURLBase != "" {
		button := slack.NewButtonBlockElement(
			"view_ticket",
			esc.TicketID,
			slack.NewTextBlockObject(slack.PlainTextType, "View Ticket", true, false),
		)
		button.URL = strings.TrimSuffix(s.ticketURLBase, "/") + "/" + esc.TicketID
		button.Style = slack.StylePrimary
		blocks = append(blocks, slack.NewActionBlock("escalation_actions", button))
	}
	return blocks
}
