package bootstrap

import "context"

// Handoff is the message a user typed on the landing page before the
// conversation view existed, keyed by the session id generated there.
type Handoff struct {
	Message string
	Mode    string
}

// Store persists handoffs across the landing-to-chat navigation. Take
// consumes: the first call for a session id returns the handoff, every later
// call returns nil. Losing a handoff is non-fatal to the conversation.
type Store interface {
	Put(ctx context.Context, sessionID string, h Handoff) error
	Take(ctx context.Context, sessionID string) (*Handoff, error)
}
