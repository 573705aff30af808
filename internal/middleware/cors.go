package middleware

import (
	"net/http"
	"slices"
)

// CORS answers cross-origin requests from the configured origins. "*" allows
// any origin.
type CORS struct {
	allowedOrigins []string
	allowAll       bool
}

// NewCORS creates the CORS middleware.
func NewCORS(allowedOrigins []string) *CORS {
	return &CORS{
		allowedOrigins: allowedOrigins,
		allowAll:       slices.Contains(allowedOrigins, "*"),
	}
}

// Handler returns the CORS middleware handler.
func (m *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (m.allowAll || slices.Contains(m.allowedOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
