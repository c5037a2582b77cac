package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"whisper/auth"
)

// NewRouter wires the REST surface and the WebSocket upgrade endpoint.
// Auth routes are public; everything else requires a Bearer token.
func NewRouter(h *Handler, tokens *auth.TokenManager, wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/signup", h.handleSignup)
		api.Post("/auth/login", h.handleLogin)

		api.Group(func(protected chi.Router) {
			protected.Use(RequireAuth(tokens))
			protected.Post("/messages", h.handleSendMessage)
			protected.Get("/chats", h.handleListChats)
			protected.Get("/chats/{chatID}/messages", h.handleFetchMessages)
			protected.Get("/chats/{chatID}/search", h.handleSearchMessages)
		})
	})

	// Token validation for the socket happens inside the identify frame,
	// not here: browsers cannot set headers on WebSocket dials.
	r.Get("/ws", wsHandler)

	return r
}
