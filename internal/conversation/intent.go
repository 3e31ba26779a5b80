package conversation

import "strings"

// Intent is the closed set of reasons a user writes to the support handle.
type Intent string

const (
	IntentNewComplaint      Intent = "new_complaint"
	IntentHasTicket         Intent = "has_ticket"
	IntentDMTicketShared    Intent = "dm_ticket_shared"
	IntentFollowUp          Intent = "follow_up"
	IntentCredentialsShared Intent = "credentials_shared"
	IntentGeneralQuestion   Intent = "general_question"
)

// Intents lists every valid intent in prompt order.
var Intents = []Intent{
	IntentNewComplaint,
	IntentHasTicket,
	IntentDMTicketShared,
	IntentFollowUp,
	IntentCredentialsShared,
	IntentGeneralQuestion,
}

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

func (i Intent) String() string {
	return string(i)
}

// ParseIntent normalizes a free-form label. Anything outside the known set
// becomes IntentNewComplaint so a message is never dropped.
func ParseIntent(raw string) Intent {
	intent, ok := lookupIntent(raw)
	if !ok {
		return IntentNewComplaint
	}
	return intent
}

// lookupIntent trims model noise (quotes, trailing punctuation, numbering)
// and reports whether the remainder is a known label.
func lookupIntent(raw string) (Intent, bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, "\"'`*.:;!, \n\t")
	if idx := strings.Index(label, " - "); idx >= 0 {
		label = strings.TrimSpace(label[:idx])
	}
	label = strings.TrimLeft(label, "0123456789. ")
	intent := Intent(label)
	if !intent.Valid() {
		return "", false
	}
	return intent, true
}

// Channel identifies where a message was received.
type Channel string

const (
	ChannelPublic Channel = "public"
	ChannelDirect Channel = "direct"
)

// ChannelFor maps the direct-message flag onto a Channel.
func ChannelFor(direct bool) Channel {
	if direct {
		return ChannelDirect
	}
	return ChannelPublic
}

func (c Channel) IsDirect() bool {
	return c == ChannelDirect
}
