package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/support-escalation-bot/internal/history"
	"github.com/wolfman30/support-escalation-bot/internal/notify"
	"github.com/wolfman30/support-escalation-bot/internal/observability/metrics"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

var routerTracer = otel.Tracer("supportbot/router")

var (
	// ErrPersistence wraps store failures. The caller should retry; nothing
	// was recorded for the message.
	ErrPersistence = errors.New("conversation: failed to persist interaction")
	// ErrInvalidInbound is returned for messages without a username or text.
	ErrInvalidInbound = errors.New("conversation: username and message are required")
)

// escalationContextDepth is how many prior records are scanned for the
// complaint that preceded a ticket share.
const escalationContextDepth = 5

// Inbound is one message received from any ingress.
type Inbound struct {
	Username string
	Text     string
	Direct   bool
	PostURL  string
	SourceID string
}

// Result describes how a message was handled.
type Result struct {
	Username              string           `json:"username"`
	Intent                Intent           `json:"intent"`
	Category              ResponseCategory `json:"category"`
	Response              string           `json:"response"`
	TicketID              string           `json:"ticket_number,omitempty"`
	Channel               Channel          `json:"channel"`
	Escalated             bool             `json:"escalated"`
	EscalationSuppressed  bool             `json:"escalation_suppressed,omitempty"`
	NotificationDelivered bool             `json:"notification_delivered"`
	PreviousIntent        string           `json:"previous_intent,omitempty"`
	RecordID              int64            `json:"record_id"`
}

// Decide applies the routing table. It returns the reply category and
// whether the message should be escalated. First matching rule wins.
func Decide(intent Intent, channel Channel, ticketID string) (ResponseCategory, bool) {
	switch {
	case intent == IntentCredentialsShared && channel == ChannelPublic:
		return CategoryCredentialsWarning, false
	case intent == IntentDMTicketShared && channel == ChannelDirect && ticketID != "":
		return CategoryDMTicketReceived, true
	case intent == IntentHasTicket:
		return CategoryHasTicket, false
	case intent == IntentFollowUp:
		return CategoryFollowUp, false
	case intent == IntentGeneralQuestion:
		return CategoryGeneralQuestion, false
	case channel == ChannelDirect && intent != IntentDMTicketShared:
		return CategoryDMNoTicket, false
	default:
		return CategoryNewComplaint, false
	}
}

// Router classifies inbound messages, picks a reply, escalates ticket shares
// and records every interaction.
type Router struct {
	classifier    Classifier
	selector      *ResponseSelector
	store         history.Store
	notifier      notify.Notifier
	locker        Locker
	guard         EscalationGuard
	notifyTimeout time.Duration
	now           func() time.Time
	logger        *logging.Logger
	metrics       *metrics.SupportMetrics
}

type RouterOption func(*Router)

func WithLocker(l Locker) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.locker = l
		}
	}
}

// WithEscalationGuard enables de-duplication of repeated ticket shares.
func WithEscalationGuard(g EscalationGuard) RouterOption {
	return func(r *Router) {
		r.guard = g
	}
}

func WithNotifyTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.notifyTimeout = d
		}
	}
}

func WithRouterMetrics(m *metrics.SupportMetrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRouter(classifier Classifier, selector *ResponseSelector, store history.Store, notifier notify.Notifier, logger *logging.Logger, opts ...RouterOption) *Router {
	if classifier == nil {
		panic("conversation: classifier required")
	}
	if selector == nil {
		panic("conversation: response selector required")
	}
	if store == nil {
		panic("conversation: history store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if notifier == nil {
		notifier = notify.NewMockNotifier(logger)
	}
	r := &Router{
		classifier:    classifier,
		selector:      selector,
		store:         store,
		notifier:      notifier,
		locker:        NewKeyedMutex(),
		notifyTimeout: 10 * time.Second,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process handles one inbound message end to end. The only error that
// escapes is a persistence failure (or invalid input / lock timeout); every
// other failure degrades to a safe reply.
//
// Operators are notified before the interaction is written. When the write
// then fails nothing records that notification, so retrying the same message
// escalates it again unless a dedupe guard is configured.
func (r *Router) Process(ctx context.Context, in Inbound) (*Result, error) {
	in.Username = strings.TrimPrefix(strings.TrimSpace(in.Username), "@")
	if in.Username == "" || strings.TrimSpace(in.Text) == "" {
		return nil, ErrInvalidInbound
	}
	channel := ChannelFor(in.Direct)

	ctx, span := routerTracer.Start(ctx, "router.process")
	defer span.End()
	span.SetAttributes(attribute.String("router.channel", string(channel)))

	started := r.now()
	defer func() {
		r.metrics.ObserveProcessLatency(string(channel), r.now().Sub(started).Seconds())
	}()

	unlock, err := r.locker.Lock(ctx, lockKey(in.Username))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer unlock()

	res := &Result{Username: in.Username, Channel: channel}

	if state, err := r.store.GetUserState(ctx, in.Username); err == nil {
		res.PreviousIntent = state.LastIntent
	} else if !errors.Is(err, history.ErrNotFound) {
		r.logger.Warn("failed to load user state", "username", in.Username, "error", err)
	}

	res.Intent = r.classifier.Classify(ctx, in.Text, in.Direct)
	res.TicketID, _ = ExtractTicket(in.Text)

	var escalate bool
	res.Category, escalate = Decide(res.Intent, channel, res.TicketID)
	span.SetAttributes(
		attribute.String("router.intent", string(res.Intent)),
		attribute.String("router.category", string(res.Category)),
	)

	if escalate {
		res.Escalated, res.EscalationSuppressed = r.allowEscalation(ctx, in.Username, res.TicketID)
		if res.Escalated {
			res.NotificationDelivered = r.escalate(ctx, in, res.TicketID)
		}
	}

	res.Response = r.selectResponse(res.Category, res.TicketID)

	saved, err := r.store.RecordInteraction(ctx, history.ConversationRecord{
		Username:  in.Username,
		Message:   in.Text,
		Intent:    string(res.Intent),
		Response:  res.Response,
		Channel:   string(channel),
		TicketID:  res.TicketID,
		SourceID:  in.SourceID,
		PostURL:   in.PostURL,
		Escalated: res.Escalated,
		CreatedAt: r.now(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist interaction")
		r.metrics.ObserveProcessed(string(channel), string(res.Intent), "persist_failed")
		r.logger.Error("failed to persist interaction",
			"username", in.Username,
			"intent", res.Intent,
			"ticket_id", res.TicketID,
			"escalation_sent", res.Escalated,
			"error", err,
		)
		if res.Escalated {
			r.logger.Warn("operators were notified but the escalation is unrecorded; a retry will notify again",
				"username", in.Username, "ticket_id", res.TicketID)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	res.RecordID = saved.ID

	r.metrics.ObserveProcessed(string(channel), string(res.Intent), "ok")
	r.logger.Info("message processed",
		"username", in.Username,
		"channel", channel,
		"intent", res.Intent,
		"category", res.Category,
		"ticket_id", res.TicketID,
		"escalated", res.Escalated,
	)
	return res, nil
}

// allowEscalation consults the optional dedupe guard. A guard failure lets
// the escalation through.
func (r *Router) allowEscalation(ctx context.Context, username, ticketID string) (allowed, suppressed bool) {
	if r.guard == nil {
		return true, false
	}
	ok, err := r.guard.Allow(ctx, username, ticketID)
	if err != nil {
		r.logger.Warn("escalation guard unavailable, escalating anyway", "username", username, "ticket_id", ticketID, "error", err)
		return true, false
	}
	if !ok {
		r.metrics.ObserveEscalation("suppressed")
		r.logger.Info("repeat escalation suppressed", "username", username, "ticket_id", ticketID)
		return false, true
	}
	return true, false
}

// escalate notifies operators and reports whether delivery succeeded.
func (r *Router) escalate(ctx context.Context, in Inbound, ticketID string) bool {
	esc := notify.Escalation{
		TicketID:        ticketID,
		Username:        in.Username,
		PostURL:         in.PostURL,
		OriginalMessage: r.originalComplaint(ctx, in.Username),
		At:              r.now().UTC(),
	}

	notifyCtx, cancel := context.WithTimeout(ctx, r.notifyTimeout)
	defer cancel()
	if err := r.notifier.Escalate(notifyCtx, esc); err != nil {
		r.metrics.ObserveEscalation("failed")
		r.logger.Error("escalation delivery failed", "username", in.Username, "ticket_id", ticketID, "error", err)
		return false
	}
	r.metrics.ObserveEscalation("delivered")
	return true
}

// originalComplaint returns the newest of the user's recent messages that
// was a complaint or ticket mention.
func (r *Router) originalComplaint(ctx context.Context, username string) string {
	recent, err := r.store.RecentConversations(ctx, username, escalationContextDepth)
	if err != nil {
		r.logger.Warn("failed to load escalation context", "username", username, "error", err)
		return ""
	}
	for _, rec := range recent {
		switch Intent(rec.Intent) {
		case IntentNewComplaint, IntentHasTicket:
			return rec.Message
		}
	}
	return ""
}

func (r *Router) selectResponse(category ResponseCategory, ticketID string) string {
	text, err := r.selector.Select(category, ticketID)
	if err == nil {
		return text
	}
	r.logger.Error("response template failed, using default", "category", category, "error", err)
	if text, err = r.selector.Select(CategoryNewComplaint, ""); err == nil {
		return text
	}
	return "We hear you. Please reach out to our support team."
}
