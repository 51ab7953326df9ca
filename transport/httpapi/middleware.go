// Package httpapi exposes the conversation and message store operations
// over a request/response boundary.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"chat-core/domain"
	"chat-core/errors"
	"chat-core/identity"
)

type contextKey string

const identityKey contextKey = "identity"

// RequireIdentity runs the identity bridge on every request and stashes the
// resolved identity in the request context.
func RequireIdentity(bridge *identity.Bridge, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			id, err := bridge.Authenticate(r.Context(), bearer)
			if err != nil {
				log.Debug("request rejected", "path", r.URL.Path, "error", err)
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// identityFrom returns the identity stored by RequireIdentity.
func identityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.MapToStatus(err), map[string]string{"error": errors.ClientMessage(err)})
}
