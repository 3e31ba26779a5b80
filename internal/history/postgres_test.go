package history

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return newPostgresStoreWithQuerier(mock), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStoreRecordInteractionEscalated(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs("alice", "Ticket #12345", "dm_ticket_shared", "Escalated", "direct", "12345", "dm-1", "", true, at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec("INSERT INTO user_state").
		WithArgs("alice", "dm_ticket_shared", "12345", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("escalation_count = user_state.escalation_count \\+ 1").
		WithArgs("alice", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec, err := store.RecordInteraction(context.Background(), ConversationRecord{
		Username:  "alice",
		Message:   "Ticket #12345",
		Intent:    "dm_ticket_shared",
		Response:  "Escalated",
		Channel:   "direct",
		TicketID:  "12345",
		SourceID:  "dm-1",
		Escalated: true,
		CreatedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecordInteractionSkipsIncrement(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(anyArgs(10)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("INSERT INTO user_state").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err := store.RecordInteraction(context.Background(), ConversationRecord{
		Username: "bob", Message: "hello", Intent: "new_complaint", Response: "r", Channel: "public",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecordInteractionInsertFailure(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(anyArgs(10)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.RecordInteraction(context.Background(), ConversationRecord{
		Username: "bob", Message: "hello", Intent: "new_complaint", Response: "r", Channel: "public",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert conversation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetUserState(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT username, last_intent").WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"username", "last_intent", "last_ticket_id", "last_interaction_at", "escalation_count"}).
			AddRow("alice", "follow_up", "", at, 2))
	state, err := store.GetUserState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, state.EscalationCount)
	assert.Equal(t, "follow_up", state.LastIntent)

	mock.ExpectQuery("SELECT username, last_intent").WithArgs("ghost").WillReturnError(pgx.ErrNoRows)
	_, err = store.GetUserState(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecentConversations(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM conversations WHERE username").WithArgs("alice", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "message", "intent", "response", "channel", "ticket_id", "source_id", "post_url", "escalated", "created_at"}).
			AddRow(int64(2), "alice", "any update", "follow_up", "soon", "public", "", "", "", false, at).
			AddRow(int64(1), "alice", "stuck", "new_complaint", "email us", "public", "", "t-1", "", false, at))

	recent, err := store.RecentConversations(context.Background(), "alice", 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "follow_up", recent[0].Intent)
	assert.Equal(t, "t-1", recent[1].SourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreWatermarks(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT last_id FROM poll_watermarks").WithArgs("mentions").WillReturnError(pgx.ErrNoRows)
	mark, err := store.GetWatermark(ctx, "mentions")
	require.NoError(t, err)
	assert.Equal(t, "", mark)

	mock.ExpectExec("INSERT INTO poll_watermarks").WithArgs("mentions", "1900").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.SetWatermark(ctx, "mentions", "1900"))

	mock.ExpectQuery("SELECT last_id FROM poll_watermarks").WithArgs("mentions").
		WillReturnRows(pgxmock.NewRows([]string{"last_id"}).AddRow("1900"))
	mark, err = store.GetWatermark(ctx, "mentions")
	require.NoError(t, err)
	assert.Equal(t, "1900", mark)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	for range postgresSchema {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
