package monitor

import "sync"

// processedSet remembers the most recent platform ids, evicting the oldest
// once capacity is reached.
type processedSet struct {
	mu    sync.Mutex
	cap   int
	ids   map[string]struct{}
	order []string
	head  int
}

func newProcessedSet(capacity int) *processedSet {
	if capacity <= 0 {
		capacity = 1000
	}
	return &processedSet{
		cap:   capacity,
		ids:   make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

func (s *processedSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *processedSet) Add(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return
	}
	if len(s.order) < s.cap {
		s.order = append(s.order, id)
	} else {
		delete(s.ids, s.order[s.head])
		s.order[s.head] = id
		s.head = (s.head + 1) % s.cap
	}
	s.ids[id] = struct{}{}
}

func (s *processedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
