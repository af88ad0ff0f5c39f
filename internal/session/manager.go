package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/musekit/muse-bridge/internal/assistant"
	"github.com/musekit/muse-bridge/internal/bootstrap"
)

type managed struct {
	s     *Session
	idleT *time.Timer
}

// Manager keeps the live sessions keyed by id. Opening an id a second time
// returns the existing instance; an unknown id gets a fresh session
// populated either from the backend transcript or from a bootstrap handoff,
// never both.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*managed
	responder assistant.Responder
	history   assistant.HistoryProvider
	handoffs  bootstrap.Store
	opts      Options
	idle      time.Duration
}

func NewManager(
	responder assistant.Responder,
	history assistant.HistoryProvider,
	handoffs bootstrap.Store,
	opts Options,
	idle time.Duration,
) *Manager {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Manager{
		sessions:  map[string]*managed{},
		responder: responder,
		history:   history,
		handoffs:  handoffs,
		opts:      opts,
		idle:      idle,
	}
}

// Open returns the session for the given id, creating and populating it on
// first use. An empty externalID starts a brand-new session with a generated
// id.
func (m *Manager) Open(ctx context.Context, externalID string, mode Mode, userID string) *Session {
	id, mode := ResolveIdentity(externalID, mode)

	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.idleT.Reset(m.idle)
		m.mu.Unlock()
		return e.s
	}
	s := New(id, mode, m.responder, m.opts)
	e := &managed{s: s}
	e.idleT = time.AfterFunc(m.idle, func() { m.expire(id) })
	m.sessions[id] = e
	m.mu.Unlock()

	log.Info().Str("session_id", id).Str("mode", string(mode)).Msg("session opened")
	m.populate(ctx, s, userID)
	return s
}

func (m *Manager) populate(ctx context.Context, s *Session, userID string) {
	records, err := m.history.SessionHistory(ctx, s.ID())
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.ID()).Msg("history fetch failed, greeting only")
		records = nil
	}
	if len(records) > 0 {
		s.LoadHistory(records)
		return
	}

	h, err := m.handoffs.Take(ctx, s.ID())
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.ID()).Msg("handoff read failed, greeting only")
		return
	}
	if h == nil {
		return
	}
	if mode := Mode(h.Mode); mode.Valid() {
		s.AdoptMode(mode)
	}
	s.HandleSend(h.Message, userID)
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.s, true
}

// Refresh rehydrates an open session from the backend transcript. The
// hydrator replaces rather than merges, so redelivery is harmless.
func (m *Manager) Refresh(ctx context.Context, id string) {
	s, ok := m.Get(id)
	if !ok {
		return
	}
	records, err := m.history.SessionHistory(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("history refresh failed")
		return
	}
	if len(records) > 0 {
		s.LoadHistory(records)
	}
}

// Touch pushes back the idle deadline for a session that saw activity.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.idleT.Reset(m.idle)
	}
	m.mu.Unlock()
}

func (m *Manager) expire(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if e.s.Busy() {
		e.idleT.Reset(m.idle)
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	e.s.Close()
	log.Info().Str("session_id", id).Msg("idle session torn down")
}

// CloseAll tears down every live session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	entries := make([]*managed, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = map[string]*managed{}
	m.mu.Unlock()

	for _, e := range entries {
		e.idleT.Stop()
		e.s.Close()
	}
}
