package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/infrastructure/logger"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// SessionContextKey is the context key for the authenticated session
	SessionContextKey ContextKey = "session"

	// UserIDHeader carries the caller when token auth is disabled.
	UserIDHeader = "X-User-ID"
	// UserNameHeader optionally carries the caller's display name.
	UserNameHeader = "X-User-Name"
)

// Authenticator turns a bearer token into a session.
type Authenticator interface {
	Authenticate(token string) (domain.Session, error)
}

// AuthMiddleware requires a valid bearer token. failures may be nil.
func AuthMiddleware(authn Authenticator, failures *prometheus.CounterVec) func(http.Handler) http.Handler {
	fail := func(w http.ResponseWriter, reason, message string) {
		if failures != nil {
			failures.WithLabelValues(reason).Inc()
		}
		writeError(w, http.StatusUnauthorized, message)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				fail(w, "missing_header", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				fail(w, "bad_format", "invalid authorization header format")
				return
			}

			session, err := authn.Authenticate(parts[1])
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, domain.ErrExpiredToken) {
					reason = "expired_token"
				}
				fail(w, reason, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// HeaderAuth trusts the X-User-ID header. It is meant for local development
// with AUTH_ENABLED=false.
func HeaderAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := domain.Session{
			UserID: strings.TrimSpace(r.Header.Get(UserIDHeader)),
			Name:   strings.TrimSpace(r.Header.Get(UserNameHeader)),
		}
		if err := session.Validate(); err != nil {
			writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}

// ContextWithSession stores s in ctx and tags log lines with its user id.
func ContextWithSession(ctx context.Context, s domain.Session) context.Context {
	ctx = logger.ContextWithUserID(ctx, s.UserID)
	return context.WithValue(ctx, SessionContextKey, s)
}

// SessionFromContext extracts the authenticated session from context
func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(domain.Session)
	return s, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
