// Package middleware provides HTTP middleware for the marketplace API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pixelhaven/marketplace/internal/app/services/sessions"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenCookieName is the cookie carrying the session token for page
// contexts; API clients may send a bearer header instead.
const TokenCookieName = "auth_token"

// SessionMiddleware resolves the acting identity from the request and
// stores the user ID in the request context. Requests without a valid
// session pass through unauthenticated; enforcement happens in the
// guards downstream.
type SessionMiddleware struct {
	sessions *sessions.Service
	log      *logger.Logger
}

// NewSessionMiddleware creates the session resolver middleware.
func NewSessionMiddleware(sessionsSvc *sessions.Service, log *logger.Logger) *SessionMiddleware {
	if log == nil {
		log = logger.NewDefault("session-middleware")
	}
	return &SessionMiddleware{sessions: sessionsSvc, log: log}
}

// Handler returns the middleware handler.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.sessions.Validate(r.Context(), token)
		if err != nil {
			m.log.WithError(err).Debug("session validation failed")
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// GetUserID extracts the authenticated user ID from ctx, or "".
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a context carrying the authenticated user ID.
// Exposed for handler tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
