package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

var testEscalation = Escalation{
	TicketID:        "12345",
	Username:        "alice",
	PostURL:         "https://x.com/alice/status/1",
	OriginalMessage: "My withdrawal is stuck",
	At:              time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
}

type captureServer struct {
	mu     sync.Mutex
	bodies [][]byte
	status int
}

func (c *captureServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies = append(c.bodies, body)
	c.mu.Unlock()
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("ok"))
}

func (c *captureServer) last(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.bodies)
	var out map[string]any
	require.NoError(t, json.Unmarshal(c.bodies[len(c.bodies)-1], &out))
	return out
}

func TestMockNotifierAlwaysSucceeds(t *testing.T) {
	m := NewMockNotifier(logging.Discard())
	require.NoError(t, m.Escalate(context.Background(), Escalation{TicketID: "12345", Username: "alice"}))

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "12345", sent[0].TicketID)
	assert.Equal(t, "Twitter/X", sent[0].Platform)
	assert.False(t, sent[0].At.IsZero())
}

func TestSlackNotifierPostsBlocks(t *testing.T) {
	capture := &captureServer{}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{
		WebhookURL:    srv.URL,
		Channel:       "#twitter-escalations",
		TicketURLBase: "https://support.example.com/ticket/",
		HTTPClient:    srv.Client(),
	}, logging.Discard())
	require.NotNil(t, n)
	require.NoError(t, n.Escalate(context.Background(), testEscalation))

	payload := capture.last(t)
	assert.Equal(t, "#twitter-escalations", payload["channel"])
	assert.Contains(t, payload["text"], "#12345")

	raw, _ := json.Marshal(payload["blocks"])
	blocks := string(raw)
	assert.Contains(t, blocks, "Twitter Ticket Escalation")
	assert.Contains(t, blocks, "@alice")
	assert.Contains(t, blocks, "My withdrawal is stuck")
	assert.Contains(t, blocks, "View Tweet")
	assert.Contains(t, blocks, "https://support.example.com/ticket/12345")
}

func TestSlackNotifierErrorStatus(t *testing.T) {
	capture := &captureServer{status: http.StatusInternalServerError}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{WebhookURL: srv.URL, HTTPClient: srv.Client()}, logging.Discard())
	err := n.Escalate(context.Background(), testEscalation)
	require.Error(t, err)
}

func TestSlackNotifierSendTest(t *testing.T) {
	capture := &captureServer{}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{WebhookURL: srv.URL, HTTPClient: srv.Client()}, logging.Discard())
	require.NoError(t, n.SendTest(context.Background()))
	assert.Contains(t, capture.last(t)["text"], "connected")
}

func TestNewSlackNotifierNilWithoutURL(t *testing.T) {
	assert.Nil(t, NewSlackNotifier(SlackConfig{}, nil))
	var n *SlackNotifier
	assert.Error(t, n.Escalate(context.Background(), testEscalation))
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	capture := &captureServer{}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, n.Escalate(context.Background(), testEscalation))

	payload := capture.last(t)
	assert.Equal(t, "ticket.escalated", payload["type"])
	assert.Equal(t, "12345", payload["ticket_id"])
	assert.Equal(t, "alice", payload["username"])
	assert.NotEmpty(t, payload["event_id"])
}

func TestWebhookNotifierRejectsBadStatus(t *testing.T) {
	capture := &captureServer{status: http.StatusBadGateway}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, srv.Client(), logging.Discard())
	err := n.Escalate(context.Background(), testEscalation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type fakeEmailSender struct {
	sent []EmailMessage
	err  error
}

func (f *fakeEmailSender) Send(_ context.Context, msg EmailMessage) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestEmailNotifierFormatsMessage(t *testing.T) {
	sender := &fakeEmailSender{}
	n := NewEmailNotifier(sender, "ops@example.com", "https://support.example.com/ticket")
	require.NoError(t, n.Escalate(context.Background(), testEscalation))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ops@example.com", msg.To)
	assert.Equal(t, "[Escalation] Ticket #12345 from @alice", msg.Subject)
	assert.Contains(t, msg.Body, "Original message:\nMy withdrawal is stuck")
	assert.Contains(t, msg.Body, "https://support.example.com/ticket/12345")
	assert.Contains(t, msg.HTML, "<blockquote>My withdrawal is stuck</blockquote>")
}

func TestNewEmailNotifierRequiresRecipient(t *testing.T) {
	assert.Nil(t, NewEmailNotifier(&fakeEmailSender{}, "", ""))
	assert.Nil(t, NewEmailNotifier(nil, "ops@example.com", ""))
}

type fakeSendGrid struct {
	status int
	err    error
	got    *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.got = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "bot@example.com"}, nil))

	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "bot@example.com"}, logging.Discard())
	require.NotNil(t, sender)
	assert.Equal(t, "Support Bot", sender.fromName)

	fake := &fakeSendGrid{status: http.StatusAccepted}
	sender.client = fake
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "ops@example.com", Subject: "s", Body: "b"}))
	require.NotNil(t, fake.got)
	assert.Equal(t, "s", fake.got.Subject)

	fake.status = http.StatusUnauthorized
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "ops@example.com", Subject: "s", Body: "b"}))

	fake.err = errors.New("network down")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "ops@example.com", Subject: "s", Body: "b"}))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "bot@example.com"}, logging.Discard())
	require.NotNil(t, sender)
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "ops@example.com", Subject: "Hi", Body: "text", HTML: "<p>x</p>"}))

	assert.Equal(t, "Support Bot <bot@example.com>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"ops@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "text", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>x</p>", aws.ToString(fake.input.Content.Simple.Body.Html.Data))

	fake.err = errors.New("throttled")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "ops@example.com", Subject: "Hi", Body: "text"}))

	assert.Nil(t, NewSESSender(fake, SESConfig{}, nil))
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{}, f.err
}

func TestQueueNotifier(t *testing.T) {
	fake := &fakeSQS{}
	n := NewQueueNotifier(fake, "https://sqs.local/escalations")
	require.NoError(t, n.Escalate(context.Background(), testEscalation))

	assert.Equal(t, "https://sqs.local/escalations", aws.ToString(fake.input.QueueUrl))
	var decoded Escalation
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.input.MessageBody)), &decoded))
	assert.Equal(t, "12345", decoded.TicketID)
	assert.Equal(t, "12345", aws.ToString(fake.input.MessageAttributes["ticket_id"].StringValue))

	fake.err = errors.New("queue gone")
	assert.Error(t, n.Escalate(context.Background(), testEscalation))
	assert.Nil(t, NewQueueNotifier(fake, ""))
}

type failingNotifier struct{ err error }

func (f failingNotifier) Escalate(context.Context, Escalation) error { return f.err }

func TestMultiNotifierJoinsErrors(t *testing.T) {
	mock := NewMockNotifier(logging.Discard())
	multi := NewMultiNotifier(logging.Discard(),
		NamedNotifier{Name: "mock", Notifier: mock},
		NamedNotifier{Name: "slack", Notifier: failingNotifier{err: errors.New("slack down")}},
	)
	assert.Equal(t, 2, multi.Len())

	err := multi.Escalate(context.Background(), testEscalation)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "slack: slack down"))
	assert.Len(t, mock.Sent(), 1, "healthy sinks still receive the escalation")

	ok := NewMultiNotifier(nil, NamedNotifier{Name: "mock", Notifier: mock})
	assert.NoError(t, ok.Escalate(context.Background(), testEscalation))
}
