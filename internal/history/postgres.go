package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier is the subset of pgxpool.Pool used by the store.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pgExecer is satisfied by both the pool and a transaction.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps history in PostgreSQL for multi-instance deployments.
type PostgresStore struct {
	db   pgQuerier
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("history: pgx pool required")
	}
	return &PostgresStore{db: pool, pool: pool, now: time.Now}
}

func newPostgresStoreWithQuerier(db pgQuerier) *PostgresStore {
	if db == nil {
		panic("history: querier required")
	}
	return &PostgresStore{db: db, now: time.Now}
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL,
		message TEXT NOT NULL,
		intent TEXT NOT NULL,
		response TEXT NOT NULL,
		channel TEXT NOT NULL,
		ticket_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		post_url TEXT NOT NULL DEFAULT '',
		escalated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_username ON conversations (username, id DESC)`,
	`CREATE TABLE IF NOT EXISTS user_state (
		username TEXT PRIMARY KEY,
		last_intent TEXT NOT NULL,
		last_ticket_id TEXT NOT NULL DEFAULT '',
		last_interaction_at TIMESTAMPTZ NOT NULL,
		escalation_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS poll_watermarks (
		source TEXT PRIMARY KEY,
		last_id TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, q := range postgresSchema {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("history: ensure postgres schema: %w", err)
		}
	}
	return nil
}

const (
	pgInsertConversation = `INSERT INTO conversations
		(username, message, intent, response, channel, ticket_id, source_id, post_url, escalated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	pgUpsertState = `INSERT INTO user_state (username, last_intent, last_ticket_id, last_interaction_at, escalation_count)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (username) DO UPDATE SET
			last_intent = EXCLUDED.last_intent,
			last_ticket_id = EXCLUDED.last_ticket_id,
			last_interaction_at = EXCLUDED.last_interaction_at`
	pgIncrementEscalation = `INSERT INTO user_state (username, last_intent, last_ticket_id, last_interaction_at, escalation_count)
		VALUES ($1, '', '', $2, 1)
		ON CONFLICT (username) DO UPDATE SET escalation_count = user_state.escalation_count + 1`
)

func (s *PostgresStore) SaveConversation(ctx context.Context, rec ConversationRecord) (int64, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}
	return s.insertConversation(ctx, s.db, stampRecord(rec, s.now))
}

func (s *PostgresStore) insertConversation(ctx context.Context, exec pgExecer, rec ConversationRecord) (int64, error) {
	var id int64
	err := exec.QueryRow(ctx, pgInsertConversation,
		rec.Username, rec.Message, rec.Intent, rec.Response, rec.Channel,
		rec.TicketID, rec.SourceID, rec.PostURL, rec.Escalated, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("history: insert conversation: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpsertUserState(ctx context.Context, state UserState) error {
	if state.Username == "" {
		return ErrInvalidRecord
	}
	return s.upsertState(ctx, s.db, state)
}

func (s *PostgresStore) upsertState(ctx context.Context, exec pgExecer, state UserState) error {
	if state.LastInteractionAt.IsZero() {
		state.LastInteractionAt = s.now().UTC()
	}
	if _, err := exec.Exec(ctx, pgUpsertState,
		state.Username, state.LastIntent, state.LastTicketID, state.LastInteractionAt,
	); err != nil {
		return fmt.Errorf("history: upsert user state: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementEscalation(ctx context.Context, username string) error {
	return s.increment(ctx, s.db, username)
}

func (s *PostgresStore) increment(ctx context.Context, exec pgExecer, username string) error {
	if _, err := exec.Exec(ctx, pgIncrementEscalation, username, s.now().UTC()); err != nil {
		return fmt.Errorf("history: increment escalation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserState(ctx context.Context, username string) (*UserState, error) {
	var state UserState
	err := s.db.QueryRow(ctx, `SELECT username, last_intent, last_ticket_id, last_interaction_at, escalation_count
		FROM user_state WHERE username = $1`, username).
		Scan(&state.Username, &state.LastIntent, &state.LastTicketID, &state.LastInteractionAt, &state.EscalationCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("history: get user state: %w", err)
	}
	return &state, nil
}

func (s *PostgresStore) RecentConversations(ctx context.Context, username string, limit int) ([]ConversationRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT id, username, message, intent, response, channel, ticket_id, source_id, post_url, escalated, created_at
		FROM conversations WHERE username = $1 ORDER BY id DESC LIMIT $2`, username, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: recent conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Message, &rec.Intent, &rec.Response, &rec.Channel,
			&rec.TicketID, &rec.SourceID, &rec.PostURL, &rec.Escalated, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan conversation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate conversations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) RecentSourceIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT source_id FROM conversations
		WHERE source_id <> '' ORDER BY id DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: recent source ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("history: scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) RecordInteraction(ctx context.Context, rec ConversationRecord) (ConversationRecord, error) {
	if err := validateRecord(rec); err != nil {
		return ConversationRecord{}, err
	}
	rec = stampRecord(rec, s.now)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id, err := s.insertConversation(ctx, tx, rec)
	if err != nil {
		return ConversationRecord{}, err
	}
	rec.ID = id
	if err := s.upsertState(ctx, tx, StateFromRecord(rec)); err != nil {
		return ConversationRecord{}, err
	}
	if rec.Escalated {
		if err := s.increment(ctx, tx, rec.Username); err != nil {
			return ConversationRecord{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ConversationRecord{}, fmt.Errorf("history: commit interaction: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetWatermark(ctx context.Context, source string) (string, error) {
	var lastID string
	if err := s.db.QueryRow(ctx, `SELECT last_id FROM poll_watermarks WHERE source = $1`, source).Scan(&lastID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("history: get watermark: %w", err)
	}
	return lastID, nil
}

func (s *PostgresStore) SetWatermark(ctx context.Context, source, lastID string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO poll_watermarks (source, last_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source) DO UPDATE SET last_id = EXCLUDED.last_id, updated_at = now()`, source, lastID)
	if err != nil {
		return fmt.Errorf("history: set watermark: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
