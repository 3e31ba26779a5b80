package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/internal/history"
	"github.com/wolfman30/support-escalation-bot/internal/notify"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

type fakeTester struct {
	calls int
	err   error
}

func (f *fakeTester) SendTest(context.Context) error {
	f.calls++
	return f.err
}

type harness struct {
	store    *history.MemoryStore
	notifier *notify.MockNotifier
	svc      *Services
	closed   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logging.Discard()
	store := history.NewMemoryStore()
	selector, err := conversation.NewResponseSelector(nil, conversation.Branding{
		Brand:        "Mudrex",
		SupportEmail: "help@mudrex.com",
		FAQURL:       "https://mudrex.com/faq",
	}, conversation.WithPicker(func(int) int { return 0 }))
	require.NoError(t, err)

	classifier := conversation.NewKeywordClassifier("Mudrex")
	mock := notify.NewMockNotifier(logger)
	h := &harness{store: store, notifier: mock}
	h.svc = &Services{
		Processor:  conversation.NewRouter(classifier, selector, store, mock, logger),
		History:    store,
		Classifier: classifier,
		Close: func() error {
			h.closed = true
			return nil
		},
	}
	return h
}

func (h *harness) loader() Loader {
	return func(context.Context) (*Services, error) { return h.svc, nil }
}

func execute(t *testing.T, load Loader, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot(load)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSimulateDirectMessageEscalates(t *testing.T) {
	h := newHarness(t)
	input := strings.Join([]string{
		"1", "@alice", "My withdrawal is stuck for 3 days!",
		"2", "alice", "Here is my ticket #12345",
		"4", "alice",
		"6",
	}, "\n") + "\n"

	out, err := execute(t, h.loader(), input, "simulate")
	require.NoError(t, err)

	assert.Contains(t, out, "Intent: new_complaint")
	assert.Contains(t, out, "Intent: dm_ticket_shared")
	assert.Contains(t, out, "Ticket: #12345")
	assert.Contains(t, out, "ESCALATED: operators notified")
	assert.Contains(t, out, "Stats for @alice")
	assert.Contains(t, out, "Escalations: 1")
	assert.Contains(t, out, "Goodbye")
	assert.True(t, h.closed)

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "My withdrawal is stuck for 3 days!", sent[0].OriginalMessage)
}

func TestSimulateHandlesInvalidChoiceAndEOF(t *testing.T) {
	h := newHarness(t)

	out, err := execute(t, h.loader(), "9\n", "simulate")
	require.NoError(t, err)
	assert.Contains(t, out, "Invalid option. Choose 1-6.")
	assert.NotContains(t, out, "Goodbye")
}

func TestSimulateShowsEmptyInputErrorAndContinues(t *testing.T) {
	h := newHarness(t)

	out, err := execute(t, h.loader(), "1\nalice\n\n6\n", "simulate")
	require.NoError(t, err)
	assert.Contains(t, out, "Error: "+conversation.ErrInvalidInbound.Error())
	assert.Contains(t, out, "Goodbye")
}

func TestSimulateHistory(t *testing.T) {
	h := newHarness(t)

	out, err := execute(t, h.loader(), "3\nnobody\n1\nbob\nhow to enable 2fa\n3\nbob\n6\n", "simulate")
	require.NoError(t, err)
	assert.Contains(t, out, "No history found for @nobody")
	assert.Contains(t, out, "Conversation history for @bob")
	assert.Contains(t, out, `User: "how to enable 2fa"`)
}

func TestDemoRunsAllScenarios(t *testing.T) {
	h := newHarness(t)

	out, err := execute(t, h.loader(), "", "demo")
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario 1: New complaint")
	assert.Contains(t, out, "Scenario 7: DM without ticket")
	assert.Contains(t, out, "Category: credentials_warning")
	assert.Contains(t, out, "Category: dm_no_ticket")
	assert.Contains(t, out, "Demo complete: 7 scenarios, 1 escalated")

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "patient_user", sent[0].Username)
	assert.Equal(t, "I've raised a ticket #12345 but no response yet", sent[0].OriginalMessage)
}

func TestHistoryAndStatsCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Processor.Process(ctx, conversation.Inbound{Username: "carol", Text: "I already raised a ticket"})
	require.NoError(t, err)

	out, err := execute(t, h.loader(), "", "history", "@carol", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Conversation history for @carol")
	assert.Contains(t, out, "Intent: has_ticket")

	out, err = execute(t, h.loader(), "", "stats", "carol")
	require.NoError(t, err)
	assert.Contains(t, out, "Last intent: has_ticket")
	assert.Contains(t, out, "Ticket number: N/A")
	assert.Contains(t, out, "Escalations: 0")

	out, err = execute(t, h.loader(), "", "stats", "dave")
	require.NoError(t, err)
	assert.Contains(t, out, "No data found for @dave")
}

func TestClassifyCommand(t *testing.T) {
	h := newHarness(t)

	out, err := execute(t, h.loader(), "", "classify", "--dm", "ticket", "#12345")
	require.NoError(t, err)
	assert.Contains(t, out, "Intent: dm_ticket_shared")
	assert.Contains(t, out, "Ticket: #12345")
	assert.Contains(t, out, "Category: dm_ticket_received")
	assert.Contains(t, out, "would escalate")

	out, err = execute(t, h.loader(), "", "classify", "what is the status?")
	require.NoError(t, err)
	assert.Contains(t, out, "Intent: follow_up")
	assert.NotContains(t, out, "would escalate")

	all, err := h.store.RecentConversations(context.Background(), "anyone", 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNotifyTestCommand(t *testing.T) {
	h := newHarness(t)

	_, err := execute(t, h.loader(), "", "notify-test")
	assert.ErrorIs(t, err, ErrNotifierTestUnavailable)

	tester := &fakeTester{}
	h.svc.Tester = tester
	out, err := execute(t, h.loader(), "", "notify-test")
	require.NoError(t, err)
	assert.Contains(t, out, "Test notification sent")
	assert.Equal(t, 1, tester.calls)

	tester.err = errors.New("slack returned 404")
	_, err = execute(t, h.loader(), "", "notify-test")
	assert.ErrorContains(t, err, "slack returned 404")
}

func TestLoaderErrorIsReturned(t *testing.T) {
	boom := errors.New("database unavailable")
	load := func(context.Context) (*Services, error) { return nil, boom }

	_, err := execute(t, load, "", "stats", "alice")
	assert.ErrorIs(t, err, boom)
}

func TestArgumentValidationSkipsLoader(t *testing.T) {
	called := false
	load := func(context.Context) (*Services, error) {
		called = true
		return nil, errors.New("unexpected")
	}

	_, err := execute(t, load, "", "history")
	assert.Error(t, err)
	assert.False(t, called)
}
