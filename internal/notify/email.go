package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// EmailSender defines the interface for sending emails.
// Implementations can be swapped (SendGrid, SES) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
}

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    sendgridAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender creates a new SendGrid email sender.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Support Bot"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send sends an email via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// StubEmailSender is a no-op sender for testing or when email is disabled.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

// Send logs the email but doesn't actually send it.
func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

// EmailNotifier emails escalations to an operator mailbox.
type EmailNotifier struct {
	sender        EmailSender
	to            string
	ticketURLBase string
}

func NewEmailNotifier(sender EmailSender, to, ticketURLBase string) *EmailNotifier {
	if sender == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	return &EmailNotifier{sender: sender, to: to, ticketURLBase: ticketURLBase}
}

func (n *EmailNotifier) Escalate(ctx context.Context, esc Escalation) error {
	if n == nil {
		return errors.New("notify: email notifier not configured")
	}
	esc = esc.withDefaults()
	return n.sender.Send(ctx, EmailMessage{
		To:      n.to,
		Subject: fmt.Sprintf("[Escalation] Ticket #%s from %s", esc.TicketID, esc.Handle()),
		Body:    n.plainBody(esc),
		HTML:    n.htmlBody(esc),
	})
}

func (n *EmailNotifier) ticketURL(ticketID string) string {
	if n.ticketURLBase == "" {
		return ""
	}
	return strings.TrimSuffix(n.ticketURLBase, "/") + "/" + ticketID
}

func (n *EmailNotifier) plainBody(esc Escalation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n", esc.Handle())
	fmt.Fprintf(&b, "Ticket: #%s\n", esc.TicketID)
	fmt.Fprintf(&b, "Platform: %s\n", esc.Platform)
	fmt.Fprintf(&b, "Time: %s\n", esc.At.Format("2006-01-02 15:04:05 MST"))
	if esc.OriginalMessage != "" {
		fmt.Fprintf(&b, "\nOriginal message:\n%s\n", esc.OriginalMessage)
	}
	if esc.PostURL != "" {
		fmt.Fprintf(&b, "\nPost: %s\n", esc.PostURL)
	}
	if u := n.ticketURL(esc.TicketID); u != "" {
		fmt.Fprintf(&b, "Ticket link: %s\n", u)
	}
	return b.String()
}

func (n *EmailNotifier) htmlBody(esc Escalation) string {
	var b strings.Builder
	b.WriteString("<h2>Ticket Escalation</h2><ul>")
	fmt.Fprintf(&b, "<li><strong>User:</strong> %s</li>", html.EscapeString(esc.Handle()))
	fmt.Fprintf(&b, "<li><strong>Ticket:</strong> #%s</li>", html.EscapeString(esc.TicketID))
	fmt.Fprintf(&b, "<li><strong>Platform:</strong> %s</li>", html.EscapeString(esc.Platform))
	b.WriteString("</ul>")
	if esc.OriginalMessage != "" {
		fmt.Fprintf(&b, "<blockquote>%s</blockquote>", html.EscapeString(esc.OriginalMessage))
	}
	if esc.PostURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View post</a></p>`, html.EscapeString(esc.PostURL))
	}
	if u := n.ticketURL(esc.TicketID); u != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View ticket</a></p>`, html.EscapeString(u))
	}
	return b.String()
}
