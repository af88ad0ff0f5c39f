package gateway

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/api/handoff", h.HandleHandoff)
	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/open", h.HandleOpen)
		r.Get("/", h.HandleGet)
		r.Post("/messages", h.HandleSendMessage)
		r.Get("/stream", h.HandleStream)
	})
}
