package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/jobboard/internal/credentials"
	"github.com/R3E-Network/jobboard/internal/enrichment"
	"github.com/R3E-Network/jobboard/internal/httputil"
	"github.com/R3E-Network/jobboard/internal/jobboard"
	"github.com/R3E-Network/jobboard/internal/middleware"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// JobView is a job with its optional off-chain metadata.
type JobView struct {
	*jobboard.Job
	Metadata *enrichment.Job `json:"metadata,omitempty"`
}

// writeErr maps an error onto a status code.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *jobboard.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			details[f.Field] = f.Message
		}
		httputil.WriteErrorDetails(w, http.StatusBadRequest, "invalid input", details)
	case errors.Is(err, jobboard.ErrInvalidInput):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobboard.ErrNotFound), errors.Is(err, enrichment.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, credentials.ErrNoSession), errors.Is(err, credentials.ErrTokenExpired),
		errors.Is(err, credentials.ErrInvalidToken):
		httputil.WriteError(w, http.StatusUnauthorized, err.Error())
	default:
		logger.FromContext(r.Context(), s.log).WithError(err).WithField("path", r.URL.Path).Error("request failed")
		httputil.WriteError(w, http.StatusBadGateway, "ledger request failed")
	}
}

func (s *Server) found(w http.ResponseWriter, v any, isNil bool, what string) {
	if isNil {
		httputil.WriteError(w, http.StatusNotFound, what+" not found")
		return
	}
	httputil.WriteSuccess(w, v)
}

// =============================================================================
// Health
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.chain == nil {
		httputil.WriteSuccess(w, map[string]string{"status": "ok"})
		return
	}
	id, err := s.chain.GetChainIdentifier(r.Context())
	if err != nil {
		logger.FromContext(r.Context(), s.log).WithError(err).Warn("ledger not ready")
		httputil.WriteError(w, http.StatusServiceUnavailable, "ledger unreachable")
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok", "chain": id})
}

// =============================================================================
// Reads
// =============================================================================

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.GetBoard(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.found(w, board, board == nil, "board")
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetStatistics(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// handleListJobs serves ?status=all|active|open and an optional ?employer=.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		jobs []*jobboard.Job
		err  error
	)
	switch q.Get("status") {
	case "", "all":
		jobs, err = s.svc.GetAllJobs(ctx)
	case "active":
		jobs, err = s.svc.GetActiveJobs(ctx)
	case "open":
		jobs, err = s.svc.GetOpenJobs(ctx, s.now())
	default:
		httputil.WriteError(w, http.StatusBadRequest, "status must be all, active or open")
		return
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	if employer := q.Get("employer"); employer != "" {
		mine, err := s.svc.GetJobsByEmployer(ctx, employer)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		keep := make(map[string]bool, len(mine))
		for _, j := range mine {
			keep[j.ID] = true
		}
		filtered := make([]*jobboard.Job, 0, len(mine))
		for _, j := range jobs {
			if keep[j.ID] {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	httputil.WriteSuccess(w, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if job == nil {
		httputil.WriteError(w, http.StatusNotFound, "job not found")
		return
	}

	view := JobView{Job: job}
	if s.enrich != nil && r.URL.Query().Get("enrich") != "false" {
		meta, err := s.enrich.GetJob(r.Context(), job.ID)
		if err != nil {
			logger.FromContext(r.Context(), s.log).WithError(err).WithField("job_id", job.ID).
				Debug("job metadata unavailable")
		} else {
			view.Metadata = meta
		}
	}
	httputil.WriteSuccess(w, view)
}

func (s *Server) handleJobApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.svc.GetJobApplications(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteSuccess(w, apps)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.GetAllUserProfiles(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

func (s *Server) handleUserByAddress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetUserProfileByAddress(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.found(w, p, p == nil, "user profile")
}

func (s *Server) handleUserApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.svc.GetUserApplications(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteSuccess(w, apps)
}

func (s *Server) handleListEmployers(w http.ResponseWriter, r *http.Request) {
	employers, err := s.svc.GetAllEmployerProfiles(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteSuccess(w, employers)
}

func (s *Server) handleEmployerByAddress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetEmployerProfileByAddress(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.found(w, p, p == nil, "employer profile")
}

func (s *Server) handleEmployerCaps(w http.ResponseWriter, r *http.Request) {
	caps, err := s.svc.GetEmployerCaps(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteSuccess(w, caps)
}

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetUserProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.found(w, p, p == nil, "user profile")
}

func (s *Server) handleEmployerProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetEmployerProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.found(w, p, p == nil, "employer profile")
}

// =============================================================================
// Sessions
// =============================================================================

type loginRequest struct {
	IDToken string `json:"idToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		httputil.WriteError(w, http.StatusNotImplemented, "sessions disabled")
		return
	}
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.sessions.Login(r.Context(), req.IDToken)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.APIResponse{Success: true, Data: session})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "login required")
		return
	}
	httputil.WriteSuccess(w, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if s.sessions == nil || session == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "login required")
		return
	}
	if err := s.sessions.Logout(r.Context(), session.ID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Transaction descriptions
// =============================================================================

// build decodes the request body into in, runs build and writes the call.
func build[T any](s *Server, w http.ResponseWriter, r *http.Request, fn func(session *credentials.Session, in T) (*jobboard.CallDescription, error)) {
	var in T
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	call, err := fn(middleware.GetSession(r.Context()), in)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteSuccess(w, call)
}

func (s *Server) handleSaveUserProfile(w http.ResponseWriter, r *http.Request) {
	build(s, w, r, func(session *credentials.Session, in jobboard.UserProfileInput) (*jobboard.CallDescription, error) {
		return s.writer.BuildSaveUserProfile(r.Context(), session.Address, in)
	})
}

func (s *Server) handleSaveEmployerProfile(w http.ResponseWriter, r *http.Request) {
	build(s, w, r, func(session *credentials.Session, in jobboard.EmployerProfileInput) (*jobboard.CallDescription, error) {
		return s.writer.BuildSaveEmployerProfile(r.Context(), session.Address, in)
	})
}

func (s *Server) handlePostJob(w http.ResponseWriter, r *http.Request) {
	build(s, w, r, func(_ *credentials.Session, in jobboard.PostJobInput) (*jobboard.CallDescription, error) {
		return s.builder.PostJob(in)
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	build(s, w, r, func(_ *credentials.Session, in jobboard.ApplyInput) (*jobboard.CallDescription, error) {
		return s.writer.BuildApply(r.Context(), in)
	})
}

type hireRequest struct {
	JobID         string `json:"jobId"`
	CapID         string `json:"capId,omitempty"`
	Candidate     string `json:"candidate"`
	ApplicationID string `json:"applicationId"`
}

func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	build(s, w, r, func(session *credentials.Session, in hireRequest) (*jobboard.CallDescription, error) {
		return s.writer.BuildHire(r.Context(), jobboard.HireRequest{
			JobID:         in.JobID,
			Employer:      session.Address,
			CapID:         in.CapID,
			Candidate:     in.Candidate,
			ApplicationID: in.ApplicationID,
		})
	})
}

type closeRequest struct {
	JobID string `json:"jobId"`
	CapID string `json:"capId,omitempty"`
}

func (s *Server) handleCloseJob(w http.ResponseWriter, r *http.Request) {
	build(s, w, r, func(session *credentials.Session, in closeRequest) (*jobboard.CallDescription, error) {
		return s.writer.BuildCloseJob(r.Context(), session.Address, in.JobID, in.CapID)
	})
}
