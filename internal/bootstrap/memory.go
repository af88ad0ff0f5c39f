package bootstrap

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	handoff  Handoff
	consumed bool
}

// memoryStore is the in-process fallback used when no database is
// configured. Consumed entries linger for the retention window so a
// duplicate delivery is ignored rather than resent.
type memoryStore struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	retention time.Duration
}

func NewMemoryStore(retention time.Duration) Store {
	if retention <= 0 {
		retention = time.Minute
	}
	return &memoryStore{
		entries:   map[string]*memoryEntry{},
		retention: retention,
	}
}

func (s *memoryStore) Put(_ context.Context, sessionID string, h Handoff) error {
	s.mu.Lock()
	s.entries[sessionID] = &memoryEntry{handoff: h}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Take(_ context.Context, sessionID string) (*Handoff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok || e.consumed {
		return nil, nil
	}
	e.consumed = true
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		if cur, ok := s.entries[sessionID]; ok && cur == e {
			delete(s.entries, sessionID)
		}
		s.mu.Unlock()
	})
	h := e.handoff
	return &h, nil
}
