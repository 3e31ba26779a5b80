package history

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps everything in process. Used by the demo CLI and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	records    []ConversationRecord
	states     map[string]*UserState
	watermarks map[string]Watermark
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:     make(map[string]*UserState),
		watermarks: make(map[string]Watermark),
		now:        time.Now,
	}
}

func (s *MemoryStore) SaveConversation(_ context.Context, rec ConversationRecord) (int64, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(rec).ID, nil
}

func (s *MemoryStore) UpsertUserState(_ context.Context, state UserState) error {
	if strings.TrimSpace(state.Username) == "" {
		return ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(state)
	return nil
}

func (s *MemoryStore) IncrementEscalation(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incrementLocked(username)
	return nil
}

func (s *MemoryStore) GetUserState(_ context.Context, username string) (*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (s *MemoryStore) RecentConversations(_ context.Context, username string, limit int) ([]ConversationRecord, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConversationRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].Username == username {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentSourceIDs(_ context.Context, limit int) ([]string, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if id := s.records[i].SourceID; id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordInteraction(_ context.Context, rec ConversationRecord) (ConversationRecord, error) {
	if err := validateRecord(rec); err != nil {
		return ConversationRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.appendLocked(rec)
	s.upsertLocked(StateFromRecord(saved))
	if saved.Escalated {
		s.incrementLocked(saved.Username)
	}
	return saved, nil
}

func (s *MemoryStore) GetWatermark(_ context.Context, source string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermarks[source].LastID, nil
}

func (s *MemoryStore) SetWatermark(_ context.Context, source, lastID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[source] = Watermark{Source: source, LastID: lastID, UpdatedAt: s.now().UTC()}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) appendLocked(rec ConversationRecord) ConversationRecord {
	s.nextID++
	rec = stampRecord(rec, s.now)
	rec.ID = s.nextID
	s.records = append(s.records, rec)
	return rec
}

func (s *MemoryStore) upsertLocked(state UserState) {
	if state.LastInteractionAt.IsZero() {
		state.LastInteractionAt = s.now().UTC()
	}
	if existing, ok := s.states[state.Username]; ok {
		state.EscalationCount = existing.EscalationCount
	} else {
		state.EscalationCount = 0
	}
	s.states[state.Username] = &state
}

func (s *MemoryStore) incrementLocked(username string) {
	state, ok := s.states[username]
	if !ok {
		state = &UserState{Username: username, LastInteractionAt: s.now().UTC()}
		s.states[username] = state
	}
	state.EscalationCount++
}
