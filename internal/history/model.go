package history

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a user has no stored state.
var ErrNotFound = errors.New("history: not found")

// ConversationRecord is one processed inbound message and the reply sent.
// Records are append-only.
type ConversationRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Intent    string    `json:"intent"`
	Response  string    `json:"response"`
	Channel   string    `json:"channel"`
	TicketID  string    `json:"ticket_id,omitempty"`
	SourceID  string    `json:"source_id,omitempty"`
	PostURL   string    `json:"post_url,omitempty"`
	Escalated bool      `json:"escalated"`
	CreatedAt time.Time `json:"created_at"`
}

// UserState is the latest known state for a username.
type UserState struct {
	Username          string    `json:"username"`
	LastIntent        string    `json:"last_intent"`
	LastTicketID      string    `json:"last_ticket_id,omitempty"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	EscalationCount   int       `json:"escalation_count"`
}

// Watermark marks the last platform item handled for a polling source.
type Watermark struct {
	Source    string    `json:"source"`
	LastID    string    `json:"last_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateFromRecord derives the user state row written alongside rec.
func StateFromRecord(rec ConversationRecord) UserState {
	return UserState{
		Username:          rec.Username,
		LastIntent:        rec.Intent,
		LastTicketID:      rec.TicketID,
		LastInteractionAt: rec.CreatedAt,
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func stampRecord(rec ConversationRecord, now func() time.Time) ConversationRecord {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)
	return rec
}
