package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default single-node store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("history: create data dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply sqlite pragmas: %w", err)
	}
	store := NewSQLiteStoreFromDB(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStoreFromDB wraps an existing handle without touching the schema.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	if db == nil {
		panic("history: sql db required")
	}
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			message TEXT NOT NULL,
			intent TEXT NOT NULL,
			response TEXT NOT NULL,
			channel TEXT NOT NULL,
			ticket_id TEXT NOT NULL DEFAULT '',
			source_id TEXT NOT NULL DEFAULT '',
			post_url TEXT NOT NULL DEFAULT '',
			escalated INTEGER NOT NULL DEFAULT 0,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_username ON conversations(username, id DESC);`,
		`CREATE TABLE IF NOT EXISTS user_state (
			username TEXT PRIMARY KEY,
			last_intent TEXT NOT NULL,
			last_ticket_id TEXT NOT NULL DEFAULT '',
			last_interaction_at_unix INTEGER NOT NULL,
			escalation_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS poll_watermarks (
			source TEXT PRIMARY KEY,
			last_id TEXT NOT NULL,
			updated_at_unix INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("history: ensure sqlite schema: %w", err)
		}
	}
	return nil
}

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	sqliteInsertConversation = `INSERT INTO conversations
		(username, message, intent, response, channel, ticket_id, source_id, post_url, escalated, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqliteUpsertState = `INSERT INTO user_state (username, last_intent, last_ticket_id, last_interaction_at_unix, escalation_count)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(username) DO UPDATE SET
			last_intent = excluded.last_intent,
			last_ticket_id = excluded.last_ticket_id,
			last_interaction_at_unix = excluded.last_interaction_at_unix`
	sqliteIncrementEscalation = `INSERT INTO user_state (username, last_intent, last_ticket_id, last_interaction_at_unix, escalation_count)
		VALUES (?, '', '', ?, 1)
		ON CONFLICT(username) DO UPDATE SET escalation_count = user_state.escalation_count + 1`
)

func (s *SQLiteStore) SaveConversation(ctx context.Context, rec ConversationRecord) (int64, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}
	rec = stampRecord(rec, s.now)
	return s.insertConversation(ctx, s.db, rec)
}

func (s *SQLiteStore) insertConversation(ctx context.Context, exec sqlExecer, rec ConversationRecord) (int64, error) {
	res, err := exec.ExecContext(ctx, sqliteInsertConversation,
		rec.Username, rec.Message, rec.Intent, rec.Response, rec.Channel,
		rec.TicketID, rec.SourceID, rec.PostURL, boolToInt(rec.Escalated), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: conversation id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpsertUserState(ctx context.Context, state UserState) error {
	if state.Username == "" {
		return ErrInvalidRecord
	}
	return s.upsertState(ctx, s.db, state)
}

func (s *SQLiteStore) upsertState(ctx context.Context, exec sqlExecer, state UserState) error {
	if state.LastInteractionAt.IsZero() {
		state.LastInteractionAt = s.now()
	}
	if _, err := exec.ExecContext(ctx, sqliteUpsertState,
		state.Username, state.LastIntent, state.LastTicketID, state.LastInteractionAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("history: upsert user state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IncrementEscalation(ctx context.Context, username string) error {
	return s.increment(ctx, s.db, username)
}

func (s *SQLiteStore) increment(ctx context.Context, exec sqlExecer, username string) error {
	if _, err := exec.ExecContext(ctx, sqliteIncrementEscalation, username, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("history: increment escalation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserState(ctx context.Context, username string) (*UserState, error) {
	var (
		state     UserState
		lastAtRaw int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT username, last_intent, last_ticket_id, last_interaction_at_unix, escalation_count
		FROM user_state WHERE username = ?`, username).
		Scan(&state.Username, &state.LastIntent, &state.LastTicketID, &lastAtRaw, &state.EscalationCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("history: get user state: %w", err)
	}
	state.LastInteractionAt = time.UnixMilli(lastAtRaw).UTC()
	return &state, nil
}

func (s *SQLiteStore) RecentConversations(ctx context.Context, username string, limit int) ([]ConversationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, message, intent, response, channel, ticket_id, source_id, post_url, escalated, created_at_unix
		FROM conversations WHERE username = ? ORDER BY id DESC LIMIT ?`, username, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: recent conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationRecord
	for rows.Next() {
		var (
			rec       ConversationRecord
			escalated int
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Message, &rec.Intent, &rec.Response, &rec.Channel,
			&rec.TicketID, &rec.SourceID, &rec.PostURL, &escalated, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan conversation: %w", err)
		}
		rec.Escalated = escalated != 0
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate conversations: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) RecentSourceIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_id FROM conversations
		WHERE source_id <> '' ORDER BY id DESC LIMIT ?`, normalizeLimit(limit))
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

func (s *SQLiteStore) RecordInteraction(ctx context.Context, rec ConversationRecord) (ConversationRecord, error) {
	if err := validateRecord(rec); err != nil {
		return ConversationRecord{}, err
	}
	rec = stampRecord(rec, s.now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

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
	if err := tx.Commit(); err != nil {
		return ConversationRecord{}, fmt.Errorf("history: commit interaction: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetWatermark(ctx context.Context, source string) (string, error) {
	var lastID string
	err := s.db.QueryRowContext(ctx, `SELECT last_id FROM poll_watermarks WHERE source = ?`, source).Scan(&lastID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("history: get watermark: %w", err)
	}
	return lastID, nil
}

func (s *SQLiteStore) SetWatermark(ctx context.Context, source, lastID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO poll_watermarks (source, last_id, updated_at_unix)
		VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET last_id = excluded.last_id, updated_at_unix = excluded.updated_at_unix`,
		source, lastID, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("history: set watermark: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
