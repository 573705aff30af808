// Package httpapi exposes the job board read API and unsigned transaction
// descriptions over HTTP. It never signs: clients sign the returned calls
// with their own wallet.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/jobboard/internal/credentials"
	"github.com/R3E-Network/jobboard/internal/enrichment"
	"github.com/R3E-Network/jobboard/internal/jobboard"
	"github.com/R3E-Network/jobboard/internal/metrics"
	"github.com/R3E-Network/jobboard/internal/middleware"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// ChainPinger reports the chain identifier. *ledger.Client implements it.
type ChainPinger interface {
	GetChainIdentifier(ctx context.Context) (string, error)
}

// Options wires the server's collaborators. Sessions, Enrichment and Chain
// are optional.
type Options struct {
	Service    *jobboard.Service
	Builder    *jobboard.Builder
	Writer     *jobboard.Writer
	Sessions   *credentials.Manager
	Enrichment *enrichment.Client
	Chain      ChainPinger

	RequestsPerSecond float64
	Burst             int
	AllowedOrigins    []string
	Logger            *logger.Logger
	Now               func() time.Time
}

// Server is the HTTP gateway.
type Server struct {
	svc      *jobboard.Service
	builder  *jobboard.Builder
	writer   *jobboard.Writer
	sessions *credentials.Manager
	enrich   *enrichment.Client
	chain    ChainPinger
	limiter  *middleware.RateLimiter
	log      *logger.Logger
	now      func() time.Time
	router   *mux.Router
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Service == nil || opts.Builder == nil || opts.Writer == nil {
		return nil, fmt.Errorf("service, builder and writer required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewDefault("httpapi")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 20
	}

	s := &Server{
		svc:      opts.Service,
		builder:  opts.Builder,
		writer:   opts.Writer,
		sessions: opts.Sessions,
		enrich:   opts.Enrichment,
		chain:    opts.Chain,
		limiter:  middleware.NewRateLimiter(opts.RequestsPerSecond, opts.Burst, opts.Logger),
		log:      opts.Logger,
		now:      opts.Now,
	}
	s.routes(opts.AllowedOrigins)
	return s, nil
}

func (s *Server) routes(origins []string) {
	r := mux.NewRouter()

	var lookup middleware.SessionLookup
	if s.sessions != nil {
		lookup = s.sessions
	}
	r.Use(
		middleware.NewTracing(s.log).Handler,
		metrics.InstrumentHandler,
		middleware.NewCORS(origins).Handler,
		middleware.NewSessions(lookup, s.log).Handler,
		s.limiter.Handler,
	)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/board", s.handleGetBoard).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleGetStatistics).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/applications", s.handleJobApplications).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{address}", s.handleUserByAddress).Methods(http.MethodGet)
	api.HandleFunc("/users/{address}/applications", s.handleUserApplications).Methods(http.MethodGet)
	api.HandleFunc("/employers", s.handleListEmployers).Methods(http.MethodGet)
	api.HandleFunc("/employers/{address}", s.handleEmployerByAddress).Methods(http.MethodGet)
	api.HandleFunc("/employers/{address}/caps", s.handleEmployerCaps).Methods(http.MethodGet)
	api.HandleFunc("/profiles/users/{id}", s.handleUserProfile).Methods(http.MethodGet)
	api.HandleFunc("/profiles/employers/{id}", s.handleEmployerProfile).Methods(http.MethodGet)

	api.HandleFunc("/session", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)

	tx := api.PathPrefix("/tx").Subrouter()
	tx.Use(middleware.RequireSession)
	tx.HandleFunc("/user-profile", s.handleSaveUserProfile).Methods(http.MethodPost)
	tx.HandleFunc("/employer-profile", s.handleSaveEmployerProfile).Methods(http.MethodPost)
	tx.HandleFunc("/jobs", s.handlePostJob).Methods(http.MethodPost)
	tx.HandleFunc("/applications", s.handleApply).Methods(http.MethodPost)
	tx.HandleFunc("/hire", s.handleHire).Methods(http.MethodPost)
	tx.HandleFunc("/close", s.handleCloseJob).Methods(http.MethodPost)

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	s.limiter.StartCleanup(cleanupCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.log.Info("gateway shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
