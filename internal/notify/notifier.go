package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// Escalation is the alert sent to the operator channel when a user shares a
// ticket number by direct message.
type Escalation struct {
	TicketID        string    `json:"ticket_id"`
	Username        string    `json:"username"`
	PostURL         string    `json:"post_url,omitempty"`
	OriginalMessage string    `json:"original_message,omitempty"`
	Platform        string    `json:"platform"`
	At              time.Time `json:"at"`
}

func (e Escalation) withDefaults() Escalation {
	if e.Platform == "" {
		e.Platform = "Twitter/X"
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}

// Handle returns the username with a leading @.
func (e Escalation) Handle() string {
	return "@" + strings.TrimPrefix(e.Username, "@")
}

// Notifier delivers escalations to an operator channel.
type Notifier interface {
	Escalate(ctx context.Context, esc Escalation) error
}

// MockNotifier logs escalations instead of sending them and always succeeds.
// It is used when no delivery target is configured.
type MockNotifier struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []Escalation
}

func NewMockNotifier(logger *logging.Logger) *MockNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &MockNotifier{logger: logger}
}

func (m *MockNotifier) Escalate(_ context.Context, esc Escalation) error {
	esc = esc.withDefaults()
	m.mu.Lock()
	m.sent = append(m.sent, esc)
	m.mu.Unlock()

	m.logger.Info("mock escalation (no delivery target configured)",
		"ticket_id", esc.TicketID,
		"username", esc.Username,
		"post_url", esc.PostURL,
		"original_message", esc.OriginalMessage,
	)
	return nil
}

// Sent returns a copy of every escalation seen so far.
func (m *MockNotifier) Sent() []Escalation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Escalation(nil), m.sent...)
}

// NamedNotifier tags a sink so fan-out errors say which one failed.
type NamedNotifier struct {
	Name     string
	Notifier Notifier
}

// MultiNotifier fans an escalation out to every sink. All sinks are tried;
// the returned error joins every failure.
type MultiNotifier struct {
	sinks  []NamedNotifier
	logger *logging.Logger
}

func NewMultiNotifier(logger *logging.Logger, sinks ...NamedNotifier) *MultiNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &MultiNotifier{sinks: sinks, logger: logger}
}

// Len reports how many sinks are configured.
func (m *MultiNotifier) Len() int {
	return len(m.sinks)
}

func (m *MultiNotifier) Escalate(ctx context.Context, esc Escalation) error {
	esc = esc.withDefaults()
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Notifier.Escalate(ctx, esc); err != nil {
			m.logger.Warn("escalation sink failed", "sink", sink.Name, "ticket_id", esc.TicketID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name, err))
		}
	}
	return errors.Join(errs...)
}
