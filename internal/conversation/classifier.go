package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/support-escalation-bot/internal/observability/metrics"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

var classifierTracer = otel.Tracer("supportbot/classifier")

// ErrInvalidLabel is returned when the model answers with something outside
// the known intents.
var ErrInvalidLabel = errors.New("conversation: classifier returned an unknown label")

// Classifier maps an inbound message to an intent. Implementations never fail;
// uncertainty resolves to a deterministic answer.
type Classifier interface {
	Classify(ctx context.Context, text string, direct bool) Intent
}

// Labeler is a classifier that can fail, such as a language model.
type Labeler interface {
	Label(ctx context.Context, text string, direct bool) (Intent, error)
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

var (
	credentialMarkers = []string{"password", "login", "credentials", "@gmail", "@yahoo"}
	ticketWords       = []string{"ticket", "raised", "created", "submitted"}
	followUpWords     = []string{"update", "status", "still waiting", "when", "how long"}
	questionMarkers   = []string{"how to", "what is", "can i"}
)

// KeywordClassifier is the ordered, first-match-wins rule set used whenever
// the model is unavailable or unsure. Credential safety is checked first.
type KeywordClassifier struct {
	questionMarkers []string
}

// NewKeywordClassifier builds the rule set. brand adds a "does <brand>"
// question marker.
func NewKeywordClassifier(brand string) *KeywordClassifier {
	markers := append([]string(nil), questionMarkers...)
	if brand = strings.ToLower(strings.TrimSpace(brand)); brand != "" {
		markers = append(markers, "does "+brand)
	}
	return &KeywordClassifier{questionMarkers: markers}
}

func (c *KeywordClassifier) Classify(_ context.Context, text string, direct bool) Intent {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, credentialMarkers) || emailPattern.MatchString(text):
		return IntentCredentialsShared
	case HasTicket(text):
		if direct {
			return IntentDMTicketShared
		}
		return IntentHasTicket
	case containsAny(lower, ticketWords):
		return IntentHasTicket
	case containsAny(lower, followUpWords):
		return IntentFollowUp
	case containsAny(lower, c.questionMarkers):
		return IntentGeneralQuestion
	default:
		return IntentNewComplaint
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

const intentInstructions = `You are analyzing a message sent to %s (a crypto trading platform support handle on X).

Classify the intent into ONE of these categories:
1. new_complaint - User is complaining for the first time (hasn't mentioned raising a ticket)
2. has_ticket - User mentions they have already raised/created a support ticket
3. dm_ticket_shared - User is sharing a ticket number in DM (format: #12345)
4. follow_up - User is following up, asking for updates, or being impatient
5. credentials_shared - User shared email, password, or sensitive info publicly
6. general_question - User asking general questions about %s features/products

Response format: Just return the category name, nothing else.`

const intentPrompt = "Message: %q\nIs DM: %t"

// LLMClassifier asks a language model for the intent label.
type LLMClassifier struct {
	client LLMClient
	handle string
	brand  string
}

func NewLLMClassifier(client LLMClient, handle, brand string) *LLMClassifier {
	if strings.TrimSpace(handle) == "" {
		handle = "the support handle"
	}
	return &LLMClassifier{client: client, handle: handle, brand: brand}
}

// Label returns ErrInvalidLabel when the model reply is not a known intent.
func (c *LLMClassifier) Label(ctx context.Context, text string, direct bool) (Intent, error) {
	resp, err := c.client.Complete(ctx, LLMRequest{
		Instructions: fmt.Sprintf(intentInstructions, c.handle, c.brand),
		Prompt:       fmt.Sprintf(intentPrompt, text, direct),
		MaxTokens:    20,
	})
	if err != nil {
		return "", err
	}
	intent, ok := lookupIntent(resp.Text)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, resp.Text)
	}
	return intent, nil
}

// IntentClassifier tries the model first and falls back to keyword rules on
// error, timeout, or an unknown label. A nil primary is never called.
type IntentClassifier struct {
	primary  Labeler
	fallback Classifier
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.SupportMetrics
}

type IntentClassifierOption func(*IntentClassifier)

func WithClassifierTimeout(d time.Duration) IntentClassifierOption {
	return func(c *IntentClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClassifierMetrics(m *metrics.SupportMetrics) IntentClassifierOption {
	return func(c *IntentClassifier) {
		c.metrics = m
	}
}

func NewIntentClassifier(primary Labeler, fallback Classifier, logger *logging.Logger, opts ...IntentClassifierOption) *IntentClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	if fallback == nil {
		fallback = NewKeywordClassifier("")
	}
	c := &IntentClassifier{
		primary:  primary,
		fallback: fallback,
		timeout:  5 * time.Second,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *IntentClassifier) Classify(ctx context.Context, text string, direct bool) Intent {
	ctx, span := classifierTracer.Start(ctx, "classifier.classify")
	defer span.End()

	intent, source := c.classify(ctx, text, direct)
	span.SetAttributes(
		attribute.String("classifier.intent", string(intent)),
		attribute.String("classifier.source", source),
		attribute.Bool("classifier.direct", direct),
	)
	return intent
}

func (c *IntentClassifier) classify(ctx context.Context, text string, direct bool) (Intent, string) {
	if c.primary == nil {
		c.metrics.ObserveClassifierFallback("unconfigured")
		return c.fallback.Classify(ctx, text, direct), "rules"
	}

	llmCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	intent, err := c.primary.Label(llmCtx, text, direct)
	if err == nil {
		return intent, "llm"
	}

	reason := "error"
	switch {
	case errors.Is(err, ErrInvalidLabel):
		reason = "invalid_label"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	c.logger.Warn("intent classifier falling back to rules", "reason", reason, "error", err)
	c.metrics.ObserveClassifierFallback(reason)
	return c.fallback.Classify(ctx, text, direct), "rules"
}
