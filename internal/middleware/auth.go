package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/imemory/server/internal/apperr"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenHeader is the request header carrying the session token.
const TokenHeader = "auth-token"

// Authenticator resolves a session token to an identity id.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// Auth validates the session token and attaches the identity id to the
// request context. The token is read from the auth-token header, or from a
// Bearer Authorization header.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				respondWithError(w, apperr.CodeUnauthorized, apperr.ErrUnauthorized.Message)
				return
			}

			userID, err := a.Authenticate(token)
			if err != nil {
				respondWithError(w, apperr.CodeUnauthorized, apperr.ErrUnauthorized.Message)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// UserID extracts the authenticated identity id from context
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID returns a context carrying id, for handler tests.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}
