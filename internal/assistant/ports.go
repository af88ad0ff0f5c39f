package assistant

import (
	"context"
	"time"
)

// AskRequest is the payload for one question to the assistant backend.
type AskRequest struct {
	Question  string `json:"question"`
	Mode      string `json:"mode"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type Source struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Similarity float64 `json:"similarity"`
	Snippet    string  `json:"snippet,omitempty"`
}

type AskResponse struct {
	Response string   `json:"response"`
	Mode     string   `json:"mode"`
	Intent   string   `json:"intent"`
	Sources  []Source `json:"sources"`
}

// HistoryRecord is one query/response pair from the backend transcript.
// Response may be empty when the backend is still serving the request.
type HistoryRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Mode      string    `json:"mode"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
}

// Responder answers user questions. It knows nothing about sessions kept here.
type Responder interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
}

// HistoryProvider returns the stored transcript for a session, unordered.
type HistoryProvider interface {
	SessionHistory(ctx context.Context, sessionID string) ([]HistoryRecord, error)
}

// NoHistory is a HistoryProvider for backends that keep no transcript.
type NoHistory struct{}

func (NoHistory) SessionHistory(context.Context, string) ([]HistoryRecord, error) {
	return nil, nil
}
