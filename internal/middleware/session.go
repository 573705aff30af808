package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/R3E-Network/jobboard/internal/credentials"
	"github.com/R3E-Network/jobboard/internal/httputil"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

type sessionKey struct{}

// SessionLookup resolves a session id. *credentials.Manager implements it.
type SessionLookup interface {
	Session(ctx context.Context, id string) (*credentials.Session, error)
}

// Sessions attaches the caller's session to the request context. The session
// id travels as a bearer token. Requests without one pass through anonymous;
// requests with an unknown one are rejected.
type Sessions struct {
	lookup SessionLookup
	log    *logger.Logger
}

// NewSessions creates the session middleware.
func NewSessions(lookup SessionLookup, log *logger.Logger) *Sessions {
	if log == nil {
		log = logger.NewDefault("sessions")
	}
	return &Sessions{lookup: lookup, log: log}
}

// SessionID returns the bearer token of r, or "".
func SessionID(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Handler returns the session middleware handler.
func (m *Sessions) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := SessionID(r)
		if id == "" || m.lookup == nil {
			next.ServeHTTP(w, r)
			return
		}

		s, err := m.lookup.Session(r.Context(), id)
		if err != nil {
			log := logger.FromContext(r.Context(), m.log)
			if errors.Is(err, credentials.ErrNoSession) {
				log.Debug("unknown session")
				httputil.WriteError(w, http.StatusUnauthorized, "session expired or unknown")
				return
			}
			log.WithError(err).Error("session lookup failed")
			httputil.WriteError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession returns the session attached to ctx, or nil.
func GetSession(ctx context.Context) *credentials.Session {
	s, _ := ctx.Value(sessionKey{}).(*credentials.Session)
	return s
}

// RequireSession rejects anonymous requests.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSession(r.Context()) == nil {
			httputil.WriteError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
