package middleware

import (
	"context"
	"net/http"
	"strings"
)

// playerIDHeader carries the caller's player identity. The frontend sets it
// from its session; the API trusts it once the request has passed Auth.
const playerIDHeader = "X-Player-ID"

type contextKey struct{ name string }

var playerKey = contextKey{"player-id"}

// PlayerFrom returns the player ID attached to the request context by
// Identity, or "" when the request carried none.
func PlayerFrom(ctx context.Context) string {
	id, _ := ctx.Value(playerKey).(string)
	return id
}

// WithPlayer returns a context carrying the given player ID. Exported for
// tests that call handlers directly.
func WithPlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerKey, playerID)
}

// Identity returns middleware that extracts the player ID from the
// X-Player-ID header and stores it on the request context. Requests without
// a player ID are rejected with 401; exempt paths (health, websocket
// handshake does carry the header) pass through via the skip list.
func Identity(skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			playerID := strings.TrimSpace(r.Header.Get(playerIDHeader))
			if playerID == "" {
				// Websocket clients cannot always set headers; accept the
				// query parameter as a fallback.
				playerID = strings.TrimSpace(r.URL.Query().Get("player_id"))
			}
			if playerID == "" {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing player identity"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), playerID)))
		})
	}
}
