package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/internal/notify"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// BuildNotifier fans escalations out to every configured sink. With no sink
// configured it returns a MockNotifier that only logs. The Slack notifier is
// also returned on its own for connectivity checks.
func BuildNotifier(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, loadAWS func(context.Context) (aws.Config, error)) (notify.Notifier, *notify.SlackNotifier, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var sinks []notify.NamedNotifier

	slackNotifier := notify.NewSlackNotifier(notify.SlackConfig{
		WebhookURL:    cfg.SlackWebhookURL,
		Channel:       cfg.SlackChannel,
		TicketURLBase: cfg.TicketURLBase,
	}, logger)
	if slackNotifier != nil {
		sinks = append(sinks, notify.NamedNotifier{Name: "slack", Notifier: slackNotifier})
	}

	if hook := notify.NewWebhookNotifier(cfg.N8NWebhookURL, nil, logger); hook != nil {
		sinks = append(sinks, notify.NamedNotifier{Name: "webhook", Notifier: hook})
	}

	if to := strings.TrimSpace(cfg.EscalationEmailTo); to != "" {
		sender, err := buildEmailSender(ctx, cfg, logger, loadAWS)
		if err != nil {
			return nil, nil, err
		}
		if sender != nil {
			sinks = append(sinks, notify.NamedNotifier{
				Name:     "email",
				Notifier: notify.NewEmailNotifier(sender, to, cfg.TicketURLBase),
			})
		} else {
			logger.Warn("escalation email recipient set but no email provider configured", "provider", cfg.EmailProvider)
		}
	}

	if queueURL := strings.TrimSpace(cfg.EscalationQueueURL); queueURL != "" {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, notify.NamedNotifier{
			Name:     "sqs",
			Notifier: notify.NewQueueNotifier(sqs.NewFromConfig(awsCfg), queueURL),
		})
	}

	if len(sinks) == 0 {
		logger.Warn("no escalation target configured; escalations will only be logged")
		return notify.NewMockNotifier(logger), nil, nil
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name)
	}
	logger.Info("escalation notifier configured", "sinks", strings.Join(names, ","))
	return notify.NewMultiNotifier(logger, sinks...), slackNotifier, nil
}

// buildEmailSender returns nil when the selected provider lacks credentials.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, loadAWS func(context.Context) (aws.Config, error)) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "ses":
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil, nil
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), nil
	case "stub":
		return notify.NewStubEmailSender(logger), nil
	default:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return nil, nil
		}
		return sender, nil
	}
}
