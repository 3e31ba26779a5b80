package bootstrap

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/internal/history"
	"github.com/wolfman30/support-escalation-bot/internal/notify"
	"github.com/wolfman30/support-escalation-bot/internal/observability/metrics"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// redisLockTTL bounds how long a crashed process can hold a user's lock.
const redisLockTTL = 30 * time.Second

// BuildLLMClient returns the classification model chain: Gemini first, then
// Bedrock. It returns a nil client when neither is configured. The closer,
// when non-nil, must be closed on shutdown.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, loadAWS func(context.Context) (aws.Config, error)) (conversation.LLMClient, io.Closer, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		gemini  *conversation.GeminiLLMClient
		bedrock *conversation.BedrockLLMClient
	)
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, err
		}
		gemini = client
	}
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			if gemini != nil {
				gemini.Close()
			}
			return nil, nil, err
		}
		bedrock = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), model)
	}

	switch {
	case gemini != nil && bedrock != nil:
		logger.Info("intent classifier using gemini with bedrock fallback", "gemini_model", cfg.GeminiModelID, "bedrock_model", cfg.BedrockModelID)
		return conversation.NewFallbackLLMClient(gemini, bedrock, logger), gemini, nil
	case gemini != nil:
		logger.Info("intent classifier using gemini", "model", cfg.GeminiModelID)
		return gemini, gemini, nil
	case bedrock != nil:
		logger.Info("intent classifier using bedrock", "model", cfg.BedrockModelID)
		return bedrock, nil, nil
	default:
		logger.Warn("no classification model configured; using keyword rules only")
		return nil, nil, nil
	}
}

// BuildClassifier wraps llm (which may be nil) with the keyword fallback.
func BuildClassifier(cfg *appconfig.Config, llm conversation.LLMClient, logger *logging.Logger, m *metrics.SupportMetrics) *conversation.IntentClassifier {
	var primary conversation.Labeler
	if llm != nil {
		primary = conversation.NewLLMClassifier(llm, cfg.SupportHandle, cfg.BrandName)
	}
	return conversation.NewIntentClassifier(
		primary,
		conversation.NewKeywordClassifier(cfg.BrandName),
		logger,
		conversation.WithClassifierTimeout(cfg.ClassifierTimeout),
		conversation.WithClassifierMetrics(m),
	)
}

// BuildRouter assembles the router. Redis, when present, backs the per-user
// lock and the escalation dedupe guard; otherwise both are in-process.
func BuildRouter(
	cfg *appconfig.Config,
	classifier conversation.Classifier,
	store history.Store,
	notifier notify.Notifier,
	redisClient *redis.Client,
	logger *logging.Logger,
	m *metrics.SupportMetrics,
) (*conversation.Router, error) {
	selector, err := conversation.NewResponseSelector(nil, conversation.Branding{
		Brand:        cfg.BrandName,
		SupportEmail: cfg.SupportEmail,
		FAQURL:       cfg.FAQURL,
	})
	if err != nil {
		return nil, err
	}

	opts := []conversation.RouterOption{
		conversation.WithNotifyTimeout(cfg.NotifierTimeout),
		conversation.WithRouterMetrics(m),
	}
	if redisClient != nil {
		opts = append(opts, conversation.WithLocker(conversation.NewRedisLocker(redisClient, redisLockTTL)))
	}
	if window := cfg.EscalationDedupeWindow; window > 0 {
		if redisClient != nil {
			opts = append(opts, conversation.WithEscalationGuard(conversation.NewRedisEscalationGuard(redisClient, window)))
		} else {
			opts = append(opts, conversation.WithEscalationGuard(conversation.NewMemoryEscalationGuard(window)))
		}
		logger.Info("escalation dedupe enabled", "window", window.String(), "redis", redisClient != nil)
	}

	return conversation.NewRouter(classifier, selector, store, notifier, logger, opts...), nil
}
