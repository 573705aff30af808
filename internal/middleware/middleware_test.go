package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jobboard/internal/credentials"
	"github.com/R3E-Network/jobboard/internal/httputil"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type lookupFunc func(ctx context.Context, id string) (*credentials.Session, error)

func (f lookupFunc) Session(ctx context.Context, id string) (*credentials.Session, error) {
	return f(ctx, id)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewDiscard())
	h := rl.Handler(okHandler)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
}

func TestRateLimiter_KeysBySession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), sessionKey{}, &credentials.Session{Address: "0xabc"})
	assert.Equal(t, "addr:0xabc", clientKey(req.WithContext(ctx)))

	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "ip:192.0.2.1", clientKey(req))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, logger.NewDiscard())
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(time.Minute)
	rl.getLimiter("b")

	rl.Cleanup(30 * time.Second)
	assert.Equal(t, 1, rl.size())
}

func TestTracing_AssignsAndPropagatesRequestID(t *testing.T) {
	var seen string
	var log *logger.Logger
	h := NewTracing(logger.NewDiscard()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httputil.RequestID(r.Context())
		log = logger.FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(httputil.RequestIDHeader))
	require.NotNil(t, log)
	assert.Equal(t, seen, log.Data["request_id"])
	assert.Equal(t, http.StatusTeapot, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(httputil.RequestIDHeader, "client-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", seen)
}

func TestCORS(t *testing.T) {
	h := NewCORS([]string{"https://board.example"}).Handler(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://board.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://board.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Origin", "https://evil.board.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessions(t *testing.T) {
	lookup := lookupFunc(func(_ context.Context, id string) (*credentials.Session, error) {
		switch id {
		case "good":
			return &credentials.Session{ID: id, Address: "0xabc"}, nil
		case "down":
			return nil, errors.New("redis unavailable")
		}
		return nil, credentials.ErrNoSession
	})

	var got *credentials.Session
	h := NewSessions(lookup, logger.NewDiscard()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r.Context())
	}))

	for name, tc := range map[string]struct {
		header string
		status int
		addr   string
	}{
		"anonymous": {"", http.StatusOK, ""},
		"valid":     {"Bearer good", http.StatusOK, "0xabc"},
		"unknown":   {"Bearer stale", http.StatusUnauthorized, ""},
		"store":     {"Bearer down", http.StatusServiceUnavailable, ""},
	} {
		t.Run(name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.addr == "" {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, tc.addr, got.Address)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireSession(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tx/jobs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"login required"}`, rec.Body.String())
}
