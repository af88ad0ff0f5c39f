package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/musekit/muse-bridge/internal/assistant"
)

// state is the whole conversation state of one session. Transitions below
// are pure: they take a state value and return a new one, so each can be
// tested without timers, locks or I/O. Session (session.go) is the
// imperative shell that owns a state and serializes transitions.
type state struct {
	id       string
	mode     Mode
	messages []Message
	reveal   map[string]int       // message id -> revealed prefix length, in runes
	sent     map[string]time.Time // dispatched texts, guards duplicate sends
	awaiting bool                 // history showed a query still being served
	inFlight bool
	lastSent string
}

func newState(id string, mode Mode, at time.Time) state {
	return state{
		id:       id,
		mode:     mode,
		messages: []Message{greetingMessage(at)},
		reveal:   map[string]int{},
		sent:     map[string]time.Time{},
	}
}

func (st state) clone() state {
	next := st
	next.messages = append([]Message(nil), st.messages...)
	next.reveal = make(map[string]int, len(st.reveal))
	for k, v := range st.reveal {
		next.reveal[k] = v
	}
	next.sent = make(map[string]time.Time, len(st.sent))
	for k, v := range st.sent {
		next.sent[k] = v
	}
	return next
}

// applyHistory rebuilds the message log from the backend transcript. It
// replaces the log rather than merging: the transcript is authoritative.
// Deterministic output for a given record set keeps redelivery idempotent.
func applyHistory(st state, records []assistant.HistoryRecord) state {
	if len(records) == 0 {
		return st
	}

	sorted := append([]assistant.HistoryRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	next := st.clone()
	next.messages = []Message{greetingMessage(sorted[0].CreatedAt)}
	next.reveal = map[string]int{}
	next.awaiting = false

	if m := Mode(sorted[len(sorted)-1].Mode); m.Valid() {
		next.mode = m
	}

	seen := map[string]bool{}
	i := 0
	for _, rec := range sorted {
		query := strings.TrimSpace(rec.Query)
		response := strings.TrimSpace(rec.Response)

		if query != "" && response == "" {
			next.awaiting = true
		}
		if query == "" || seen[query] {
			continue
		}
		seen[query] = true

		next.messages = append(next.messages, Message{
			ID:        fmt.Sprintf("history-user-%d", i),
			Sender:    SenderUser,
			Content:   query,
			CreatedAt: rec.CreatedAt,
			Complete:  true,
		})
		if response != "" {
			next.messages = append(next.messages, Message{
				ID:        fmt.Sprintf("history-bot-%d", i),
				Sender:    SenderBot,
				Content:   rec.Response,
				CreatedAt: rec.CreatedAt,
				Complete:  true,
			})
		}
		i++
	}
	return next
}

// applySendRequested runs the send guards and, when the call is accepted,
// appends the optimistic user message and marks the send in flight. A
// rejected call returns the state unchanged; rejections are silent no-ops.
func applySendRequested(st state, text string, at time.Time, window time.Duration) (state, bool) {
	text = strings.TrimSpace(text)
	if text == "" || st.inFlight || text == st.lastSent {
		return st, false
	}
	if t, ok := st.sent[text]; ok && at.Sub(t) < window {
		return st, false
	}

	next := st.clone()
	if n := len(next.messages); n == 0 ||
		next.messages[n-1].Sender != SenderUser ||
		next.messages[n-1].Content != text {
		next.messages = append(next.messages, newUserMessage(text, at))
	}
	next.inFlight = true
	next.lastSent = text
	next.sent[text] = at
	for k, v := range next.sent {
		if at.Sub(v) >= window {
			delete(next.sent, k)
		}
	}
	return next, true
}

func applySendSucceeded(st state, reply string, at time.Time) state {
	next := st.clone()
	runes := []rune(reply)
	msg := newBotMessage(reply, at, len(runes) == 0)
	next.messages = append(next.messages, msg)
	if !msg.Complete {
		next.reveal[msg.ID] = 0
	}
	next.inFlight = false
	next.awaiting = false
	return next
}

func applySendFailed(st state, at time.Time) state {
	next := st.clone()
	next.messages = append(next.messages, newBotMessage(ErrorReply, at, true))
	next.inFlight = false
	next.awaiting = false
	return next
}

// revealStep reports the outcome of one reveal tick.
type revealStep struct {
	MessageID string
	Prefix    string
	Completed bool
}

// applyRevealTick advances the oldest incomplete message by one rune. Later
// incomplete messages stay untouched until the current one completes. The
// bool result is false when there was nothing to reveal.
func applyRevealTick(st state) (state, revealStep, bool) {
	idx := -1
	for i, m := range st.messages {
		if !m.Complete {
			idx = i
			break
		}
	}
	if idx < 0 {
		return st, revealStep{}, false
	}

	next := st.clone()
	msg := next.messages[idx]
	runes := []rune(msg.Content)
	cur := next.reveal[msg.ID]
	if cur < len(runes) {
		cur++
	}

	step := revealStep{MessageID: msg.ID, Prefix: string(runes[:cur])}
	if cur >= len(runes) {
		msg.Complete = true
		next.messages[idx] = msg
		delete(next.reveal, msg.ID)
		step.Completed = true
	} else {
		next.reveal[msg.ID] = cur
	}
	return next, step, true
}

func hasIncomplete(st state) bool {
	for _, m := range st.messages {
		if !m.Complete {
			return true
		}
	}
	return false
}

func displayedContent(st state, m Message) string {
	if m.Complete {
		return m.Content
	}
	runes := []rune(m.Content)
	cur := st.reveal[m.ID]
	if cur > len(runes) {
		cur = len(runes)
	}
	return string(runes[:cur])
}
