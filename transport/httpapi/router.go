package httpapi

import (
	"log/slog"
	"net/http"

	"chat-core/identity"

	"github.com/gorilla/mux"
)

// NewRouter wires the public credential-store endpoints, the authenticated
// conversation API, and the websocket upgrade path.
func NewRouter(h *Handlers, bridge *identity.Bridge, wsHandler http.Handler, log *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", h.Logout).Methods(http.MethodPost)

	// The websocket handler authenticates during the handshake itself.
	r.Handle("/ws", wsHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(RequireIdentity(bridge, log))
	api.HandleFunc("/conversations/start", h.StartConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations", h.CreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations", h.ListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/participants", h.AddParticipants).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/messages", h.ListMessages).Methods(http.MethodGet)

	return r
}
