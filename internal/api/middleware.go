package api

import (
	"context"
	"net/http"

	"github.com/vinylroom/vinylroom-server/internal/domain"
	"github.com/vinylroom/vinylroom-server/internal/session"
)

type contextKey string

const (
	sessionContextKey  contextKey = "session"
	clientIPContextKey contextKey = "client_ip"
)

// sessionMiddleware opens the session cookie, resolves the live session
// if any, and stashes it with the client IP on the request context.
// Requests without a valid session proceed unauthenticated.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPContextKey, r.RemoteAddr)

		if cookie, err := r.Cookie(session.CookieName); err == nil {
			if sid, err := s.codec.Decode(cookie.Value); err == nil {
				if sess := s.services.Auth.Resolve(sid); sess != nil {
					ctx = context.WithValue(ctx, sessionContextKey, sess)
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the linked session on the request, or nil.
func SessionFromContext(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(sessionContextKey).(*domain.Session)
	return sess
}

// clientIP returns the caller's address as resolved by the middleware.
func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	if ip == "" {
		return "unknown"
	}
	return ip
}
