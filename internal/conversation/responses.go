package conversation

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/wolfman30/support-escalation-bot/internal/messaging/templates"
)

// ErrTicketRequired is returned when a template needs a ticket number and
// none was supplied.
var ErrTicketRequired = errors.New("conversation: template requires a ticket number")

// ResponseCategory names a family of pre-approved replies.
type ResponseCategory string

const (
	CategoryNewComplaint       ResponseCategory = "new_complaint"
	CategoryHasTicket          ResponseCategory = "has_ticket"
	CategoryDMTicketReceived   ResponseCategory = "dm_ticket_received"
	CategoryFollowUp           ResponseCategory = "follow_up"
	CategoryCredentialsWarning ResponseCategory = "credentials_warning"
	CategoryGeneralQuestion    ResponseCategory = "general_question"
	CategoryDMNoTicket         ResponseCategory = "dm_no_ticket"
)

// DefaultResponseTemplates returns the stock reply variants.
func DefaultResponseTemplates() map[ResponseCategory][]string {
	return map[ResponseCategory][]string{
		CategoryNewComplaint: {
			"We understand your concern. Please email {{.SupportEmail}} and our support team will assist you promptly.",
			"We hear you. Kindly write to {{.SupportEmail}}, our team will look into this right away.",
			"We appreciate you reaching out. Please contact {{.SupportEmail}} so our support team can help resolve this.",
			"We understand the urgency. Please write to {{.SupportEmail}}, our support team will assist you.",
		},
		CategoryHasTicket: {
			"Thanks for raising the issue! Please DM me the ticket number so I can speed up the resolution.",
			"Got it! Please DM the ticket number and I'll escalate this for you.",
			"Thank you for creating a ticket. Please send me the ticket number via DM so I can prioritize this.",
		},
		CategoryDMTicketReceived: {
			"Thank you! I've escalated ticket #{{.TicketNumber}} to our team. They'll prioritize this.",
			"Noted! Ticket #{{.TicketNumber}} has been escalated. Our team will review this urgently.",
			"Got it! I've flagged ticket #{{.TicketNumber}} for immediate attention.",
		},
		CategoryFollowUp: {
			"We're reviewing your ticket and you'll hear from us soon. Thanks for your patience!",
			"Your ticket is being reviewed. Our team will get back to you shortly.",
			"We're on it! You should receive an update soon. Appreciate your patience.",
			"The team is looking into this. You'll hear back shortly!",
		},
		CategoryCredentialsWarning: {
			"⚠️ Please don't share personal details or credentials publicly on X for security reasons. Our team will never ask for passwords here.",
			"⚠️ For your security, please don't post sensitive information like emails or passwords on X. DM us or email {{.SupportEmail}} instead.",
		},
		CategoryGeneralQuestion: {
			"Please check our FAQ at {{.FAQURL}} or write to {{.SupportEmail}} for detailed assistance.",
			"For detailed information, please visit {{.FAQURL}} or email {{.SupportEmail}}.",
		},
		CategoryDMNoTicket: {
			"I can help escalate your issue. Please share your ticket number (format: #12345).",
			"I'd be happy to escalate this. Could you share your ticket number?",
		},
	}
}

// Branding fills the non-ticket placeholders in reply templates.
type Branding struct {
	Brand        string
	SupportEmail string
	FAQURL       string
}

// ResponseSelector picks one reply variant uniformly at random.
type ResponseSelector struct {
	catalog  *templates.Catalog
	branding Branding
	pick     func(n int) int
}

type ResponseSelectorOption func(*ResponseSelector)

// WithPicker replaces the random index source, mainly for tests.
func WithPicker(pick func(n int) int) ResponseSelectorOption {
	return func(s *ResponseSelector) {
		if pick != nil {
			s.pick = pick
		}
	}
}

// NewResponseSelector parses the templates. A nil map uses the defaults; the
// new_complaint category is mandatory since it is the catch-all.
func NewResponseSelector(tmpls map[ResponseCategory][]string, branding Branding, opts ...ResponseSelectorOption) (*ResponseSelector, error) {
	if tmpls == nil {
		tmpls = DefaultResponseTemplates()
	}
	if len(tmpls[CategoryNewComplaint]) == 0 {
		return nil, fmt.Errorf("conversation: %s templates are required", CategoryNewComplaint)
	}
	sources := make(map[string][]string, len(tmpls))
	for category, variants := range tmpls {
		sources[string(category)] = variants
	}
	catalog, err := templates.NewCatalog(sources)
	if err != nil {
		return nil, fmt.Errorf("conversation: load response templates: %w", err)
	}

	s := &ResponseSelector{
		catalog:  catalog,
		branding: branding,
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select renders one variant of category. Unknown categories use the
// new_complaint variants.
func (s *ResponseSelector) Select(category ResponseCategory, ticketID string) (string, error) {
	category = s.resolve(category)
	index := s.pick(s.catalog.Count(string(category)))
	return s.render(category, index, ticketID)
}

// Candidates renders every variant of category.
func (s *ResponseSelector) Candidates(category ResponseCategory, ticketID string) ([]string, error) {
	category = s.resolve(category)
	n := s.catalog.Count(string(category))
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		text, err := s.render(category, i, ticketID)
		if err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

func (s *ResponseSelector) resolve(category ResponseCategory) ResponseCategory {
	if s.catalog.Count(string(category)) == 0 {
		return CategoryNewComplaint
	}
	return category
}

func (s *ResponseSelector) render(category ResponseCategory, index int, ticketID string) (string, error) {
	data := map[string]any{
		"Brand":        s.branding.Brand,
		"SupportEmail": s.branding.SupportEmail,
		"FAQURL":       s.branding.FAQURL,
	}
	// TicketNumber is left out entirely when absent so a template that needs
	// it fails instead of rendering an empty ticket.
	if ticketID != "" {
		data["TicketNumber"] = ticketID
	}
	text, err := s.catalog.Execute(string(category), index, data)
	if err != nil {
		if ticketID == "" {
			return "", fmt.Errorf("%w: %s: %v", ErrTicketRequired, category, err)
		}
		return "", fmt.Errorf("conversation: render %s: %w", category, err)
	}
	return text, nil
}
