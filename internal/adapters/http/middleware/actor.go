package middleware

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const actorContextKey contextKey = "actor"

// Headers set by the fronting authentication layer.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Actor is the caller identity asserted by the fronting authentication layer.
type Actor struct {
	ID   string
	Role string
}

// Identity returns middleware that reads the actor headers into the request context.
// It does NOT block anonymous requests; orchestrators refuse roles without capabilities.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Role: strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole))),
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// GetActorFromContext extracts the actor from the request context.
func GetActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	return actor, ok
}

// ContextWithActor returns a context with the given actor set.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
