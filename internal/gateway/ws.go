package gateway

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/musekit/muse-bridge/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn serializes writes; session frames arrive from timer, dispatch and
// handler goroutines at once.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HandleStream attaches a websocket to the session and forwards every frame
// (snapshots and reveal ticks) until the client goes away.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	wc := &wsConn{conn: conn}

	s := h.mgr.Open(r.Context(), sessionID, session.ModeFun, userID(r))

	snap := s.Snapshot()
	if err := wc.writeJSON(session.Frame{Type: "snapshot", Snapshot: &snap}); err != nil {
		_ = conn.Close()
		return
	}

	cancel := s.Subscribe(func(f session.Frame) {
		if err := wc.writeJSON(f); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket write failed")
		}
	})
	defer func() {
		cancel()
		_ = conn.Close()
		h.mgr.Touch(sessionID)
	}()

	// Drain the read side; we only care about the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
