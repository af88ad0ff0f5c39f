package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/musekit/muse-bridge/internal/bootstrap"
	"github.com/musekit/muse-bridge/internal/session"
)

type Handler struct {
	mgr      *session.Manager
	handoffs bootstrap.Store
}

func NewHandler(mgr *session.Manager, handoffs bootstrap.Store) *Handler {
	return &Handler{mgr: mgr, handoffs: handoffs}
}

func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleHandoff stores the first message typed on the landing page under a
// freshly generated session id. A storage failure is logged but the id is
// still returned: the conversation then opens with only the greeting.
func (h *Handler) HandleHandoff(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
		Mode    string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.Message == "" {
		http.Error(w, "missing message", http.StatusBadRequest)
		return
	}

	sessionID := uuid.NewString()
	mode := session.ParseMode(payload.Mode)

	err := h.handoffs.Put(r.Context(), sessionID, bootstrap.Handoff{
		Message: payload.Message,
		Mode:    string(mode),
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("handoff store failed")
	}

	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

// HandleOpen creates or resumes the session and returns its snapshot.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	var payload struct {
		Mode string `json:"mode"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	s := h.mgr.Open(r.Context(), sessionID, session.ParseMode(payload.Mode), userID(r))
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s, ok := h.mgr.Get(sessionID)
	if !ok {
		s = h.mgr.Open(r.Context(), sessionID, session.ModeFun, userID(r))
	} else if r.URL.Query().Get("refresh") == "1" {
		h.mgr.Refresh(r.Context(), sessionID)
	}
	h.mgr.Touch(sessionID)
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// HandleSendMessage feeds one utterance into the send pipeline. Guard
// rejections are not errors: the client gets 202 either way and learns the
// outcome through the stream.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s, ok := h.mgr.Get(sessionID)
	if !ok {
		s = h.mgr.Open(r.Context(), sessionID, session.ModeFun, userID(r))
	}
	h.mgr.Touch(sessionID)

	s.HandleSend(payload.Text, userID(r))
	w.WriteHeader(http.StatusAccepted)
}
