package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/musekit/muse-bridge/internal/assistant"
)

// Frame is one event pushed to attached views. Snapshot frames carry the
// whole conversation; reveal frames carry the growing prefix of the message
// currently being typed out.
type Frame struct {
	Type      string    `json:"type"` // "snapshot" or "reveal"
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Prefix    string    `json:"prefix,omitempty"`
	Complete  bool      `json:"complete,omitempty"`
}

// MessageView is a message as a client should display it: Content holds the
// reveal prefix until the message completes.
type MessageView struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Complete  bool      `json:"complete"`
}

type Snapshot struct {
	SessionID     string        `json:"session_id"`
	Mode          Mode          `json:"mode"`
	Messages      []MessageView `json:"messages"`
	AwaitingReply bool          `json:"awaiting_reply"`
	InFlight      bool          `json:"in_flight"`
}

type Options struct {
	RevealInterval time.Duration // time between reveal ticks, per rune
	DedupeWindow   time.Duration // window for the duplicate-send guards
	AskTimeout     time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RevealInterval <= 0 {
		o.RevealInterval = 15 * time.Millisecond
	}
	if o.DedupeWindow <= 0 {
		o.DedupeWindow = 5 * time.Second
	}
	if o.AskTimeout <= 0 {
		o.AskTimeout = 120 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session owns one conversation's state and serializes every transition
// under its lock. Async continuations (send completion, reveal tick) check
// the closed flag before touching state, so completions that outlive a
// teardown become no-ops.
type Session struct {
	mu        sync.Mutex
	st        state
	responder assistant.Responder
	opts      Options
	closed    bool
	revealing bool
	revealT   *time.Timer
	listeners map[int]func(Frame)
	nextID    int
}

func New(externalID string, mode Mode, responder assistant.Responder, opts Options) *Session {
	opts = opts.withDefaults()
	id, mode := ResolveIdentity(externalID, mode)
	return &Session{
		st:        newState(id, mode, opts.Now()),
		responder: responder,
		opts:      opts,
		listeners: map[int]func(Frame){},
	}
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.id
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.mode
}

// AdoptMode overrides the session mode, used when a bootstrap handoff
// carries the mode picked on the landing page.
func (s *Session) AdoptMode(m Mode) {
	if !m.Valid() {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.st.mode = m
	s.mu.Unlock()
	s.notifySnapshot()
}

// HandleSend runs the send pipeline for one user utterance. Guard rejections
// (blank text, send in flight, duplicate text) are silent no-ops; the return
// value reports whether a request was dispatched.
func (s *Session) HandleSend(text, userID string) bool {
	if userID == "" {
		userID = "anonymous"
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	next, ok := applySendRequested(s.st, text, s.opts.Now(), s.opts.DedupeWindow)
	if !ok {
		s.mu.Unlock()
		log.Debug().Str("session_id", s.st.id).Msg("send dropped by guards")
		return false
	}
	s.st = next
	req := assistant.AskRequest{
		Question:  strings.TrimSpace(text),
		Mode:      string(s.st.mode),
		SessionID: s.st.id,
		UserID:    userID,
	}
	s.mu.Unlock()

	s.notifySnapshot()
	go s.dispatch(req)
	return true
}

func (s *Session) dispatch(req assistant.AskRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AskTimeout)
	defer cancel()

	resp, err := s.responder.Ask(ctx, req)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.st.id).Msg("assistant send failed")
		s.st = applySendFailed(s.st, s.opts.Now())
	} else {
		s.st = applySendSucceeded(s.st, resp.Response, s.opts.Now())
		s.ensureRevealLocked()
	}
	s.mu.Unlock()
	s.notifySnapshot()
}

// LoadHistory hydrates the session from the backend transcript. Empty input
// is ignored; redelivery of the same records is idempotent.
func (s *Session) LoadHistory(records []assistant.HistoryRecord) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.st = applyHistory(s.st, records)
	s.mu.Unlock()
	s.notifySnapshot()
}

func (s *Session) ensureRevealLocked() {
	if s.closed || s.revealing || !hasIncomplete(s.st) {
		return
	}
	s.revealing = true
	s.revealT = time.AfterFunc(s.opts.RevealInterval, s.revealTick)
}

func (s *Session) revealTick() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next, step, ok := applyRevealTick(s.st)
	if !ok {
		s.revealing = false
		s.revealT = nil
		s.mu.Unlock()
		return
	}
	s.st = next
	if hasIncomplete(s.st) {
		s.revealT = time.AfterFunc(s.opts.RevealInterval, s.revealTick)
	} else {
		s.revealing = false
		s.revealT = nil
	}
	s.mu.Unlock()

	s.notify(Frame{
		Type:      "reveal",
		MessageID: step.MessageID,
		Prefix:    step.Prefix,
		Complete:  step.Completed,
	})
	if step.Completed {
		s.notifySnapshot()
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.st)
}

func snapshotOf(st state) Snapshot {
	views := make([]MessageView, 0, len(st.messages))
	for _, m := range st.messages {
		views = append(views, MessageView{
			ID:        m.ID,
			Sender:    m.Sender,
			Content:   displayedContent(st, m),
			CreatedAt: m.CreatedAt,
			Complete:  m.Complete,
		})
	}
	return Snapshot{
		SessionID:     st.id,
		Mode:          st.mode,
		Messages:      views,
		AwaitingReply: st.awaiting,
		InFlight:      st.inFlight,
	}
}

// Subscribe registers a frame listener and returns its cancel func.
func (s *Session) Subscribe(fn func(Frame)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(f Frame) {
	s.mu.Lock()
	fns := make([]func(Frame), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(f)
	}
}

func (s *Session) notifySnapshot() {
	snap := s.Snapshot()
	s.notify(Frame{Type: "snapshot", Snapshot: &snap})
}

// Busy reports whether the session still has work or watchers; the manager
// keeps busy sessions alive past their idle deadline.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.inFlight || s.revealing || len(s.listeners) > 0
}

// Close tears the session down: the pending reveal tick is cancelled and any
// in-flight send completion will be dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.revealT != nil {
		s.revealT.Stop()
		s.revealT = nil
	}
	s.revealing = false
	s.listeners = map[int]func(Frame){}
}
