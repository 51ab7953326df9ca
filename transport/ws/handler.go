package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"chat-core/contract"
	"chat-core/errors"
	"chat-core/identity"
	"chat-core/services"

	"nhooyr.io/websocket"
)

// Handler upgrades HTTP requests to websocket sessions. Authentication
// happens before the upgrade: a connection that fails the identity bridge
// never reaches the session state machine.
type Handler struct {
	bridge      *identity.Bridge
	chat        services.IChatService
	broadcaster contract.Broadcaster
	bufferSize  int
	log         *slog.Logger
}

func NewHandler(bridge *identity.Bridge, chat services.IChatService,
	broadcaster contract.Broadcaster, bufferSize int, log *slog.Logger) *Handler {
	return &Handler{
		bridge:      bridge,
		chat:        chat,
		broadcaster: broadcaster,
		bufferSize:  bufferSize,
		log:         log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.bridge.Authenticate(r.Context(), BearerFromRequest(r))
	if err != nil {
		http.Error(w, errors.ClientMessage(err), errors.MapToStatus(err))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from a different origin than the API.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	h.log.Info("user connected", "user_id", id.LocalID)
	session := NewSession(conn, id, h.chat, h.broadcaster, h.bufferSize, h.log)
	if err := session.Run(r.Context()); err != nil {
		h.log.Debug("session ended", "user_id", id.LocalID, "error", err)
	}
	h.log.Info("user disconnected", "user_id", id.LocalID)
	conn.Close(websocket.StatusNormalClosure, "")
}

// BearerFromRequest extracts the credential from the Authorization header
// or, for browser websocket clients that cannot set headers, the token
// query parameter.
func BearerFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
