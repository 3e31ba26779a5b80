package history

import (
	"context"
	"errors"
)

// ErrInvalidRecord is returned for records missing a username or intent.
var ErrInvalidRecord = errors.New("history: record requires username and intent")

// Store persists the conversation log and per-user state.
type Store interface {
	// SaveConversation appends rec and returns its id.
	SaveConversation(ctx context.Context, rec ConversationRecord) (int64, error)
	// UpsertUserState creates or overwrites the state row, leaving
	// escalation_count untouched.
	UpsertUserState(ctx context.Context, state UserState) error
	// IncrementEscalation adds one to the user's escalation_count, creating
	// the row when needed.
	IncrementEscalation(ctx context.Context, username string) error
	GetUserState(ctx context.Context, username string) (*UserState, error)
	// RecentConversations returns up to limit records, newest first.
	RecentConversations(ctx context.Context, username string, limit int) ([]ConversationRecord, error)
	// RecentSourceIDs returns platform ids of the newest records that have one.
	RecentSourceIDs(ctx context.Context, limit int) ([]string, error)
	// RecordInteraction writes rec, upserts state from it and, when
	// rec.Escalated, increments the escalation count. SQL stores do this in
	// one transaction.
	RecordInteraction(ctx context.Context, rec ConversationRecord) (ConversationRecord, error)
	// GetWatermark returns "" when the source has never been recorded.
	GetWatermark(ctx context.Context, source string) (string, error)
	SetWatermark(ctx context.Context, source, lastID string) error
	Close() error
}

func validateRecord(rec ConversationRecord) error {
	if rec.Username == "" || rec.Intent == "" {
		return ErrInvalidRecord
	}
	return nil
}
