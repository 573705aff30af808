package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/jobboard/internal/httputil"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// Tracing assigns every request an id, attaches a request-scoped logger to
// its context and logs the outcome.
type Tracing struct {
	log *logger.Logger
}

// NewTracing creates the tracing middleware.
func NewTracing(log *logger.Logger) *Tracing {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return &Tracing{log: log}
}

// Handler returns the tracing middleware handler.
func (m *Tracing) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(httputil.RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(httputil.RequestIDHeader, requestID)

		reqLog := &logger.Logger{Entry: m.log.WithField("request_id", requestID)}
		ctx := httputil.WithRequestID(r.Context(), requestID)
		ctx = logger.WithContext(ctx, reqLog)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r.WithContext(ctx))

		reqLog.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", rw.statusCode).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request")
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
