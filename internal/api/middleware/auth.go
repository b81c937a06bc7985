package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/gaminghub/internal/api/apierr"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/auth"
)

type contextKey string

const identityContextKey contextKey = "identity"

// TokenVerifier checks bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Auth creates authentication middleware. Without a verifier every request is
// rejected.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" || verifier == nil {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// extractToken extracts the bearer token from the request.
// EventSource cannot set headers, so the events stream also accepts ?access_token=.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if strings.HasSuffix(r.URL.Path, "/events") {
		return r.URL.Query().Get("access_token")
	}

	return ""
}

// WithIdentity stores the verified caller on the context
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// GetIdentity returns the verified caller from the request context
func GetIdentity(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityContextKey).(*auth.Identity)
	return identity
}

// MustGetPlayerID returns the authenticated player id or panics
func MustGetPlayerID(ctx context.Context) model.PlayerID {
	identity := GetIdentity(ctx)
	if identity == nil {
		panic("no identity in context - auth middleware not applied?")
	}
	return identity.PlayerID
}
