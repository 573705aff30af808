package jobboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/R3E-Network/jobboard/internal/ledger"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// DefaultHireAttempts bounds the read-then-submit cycles of HireCandidate.
const DefaultHireAttempts = 2

// ErrRejected matches every RejectedError.
var ErrRejected = errors.New("transaction rejected")

// SubmitResult is what a Signer reports for one submission.
type SubmitResult struct {
	Success bool   `json:"success"`
	Digest  string `json:"digest,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Signer signs a call description and submits it to the ledger. Wallet
// signing lives outside this package.
type Signer interface {
	SignAndSubmit(ctx context.Context, call *CallDescription) (*SubmitResult, error)
}

// Confirmer waits until a submitted transaction is executed.
// *ledger.Client implements it.
type Confirmer interface {
	WaitForTransaction(ctx context.Context, digest string, pollInterval time.Duration) (*ledger.TransactionBlock, error)
}

// RejectedError is an on-chain rejection. Message is the contract's abort
// text, passed through uninterpreted.
type RejectedError struct {
	Digest  string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Digest == "" {
		return "transaction rejected: " + e.Message
	}
	return fmt.Sprintf("transaction %s rejected: %s", e.Digest, e.Message)
}

// Is makes errors.Is(err, ErrRejected) hold.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// WriterConfig tunes a Writer.
type WriterConfig struct {
	// MaxHireAttempts defaults to DefaultHireAttempts.
	MaxHireAttempts int
	// Confirmer, when set, makes Execute wait for execution effects.
	Confirmer Confirmer
	// PollInterval is passed to the Confirmer; zero uses its default.
	PollInterval time.Duration
	Logger       *logger.Logger
}

// Writer runs the write flows that need a read before building: profile
// upserts, hires and closes. The pre-reads are hints; the contract's own
// ownership and capability checks are what enforce correctness.
type Writer struct {
	svc     *Service
	builder *Builder
	signer  Signer
	cfg     WriterConfig
	log     *logger.Logger
}

// NewWriter wires the read API, the builder and a signer.
func NewWriter(svc *Service, builder *Builder, signer Signer, cfg WriterConfig) (*Writer, error) {
	if svc == nil || builder == nil {
		return nil, fmt.Errorf("service and builder required")
	}
	if cfg.MaxHireAttempts <= 0 {
		cfg.MaxHireAttempts = DefaultHireAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("writer")
	}
	return &Writer{svc: svc, builder: builder, signer: signer, cfg: cfg, log: cfg.Logger}, nil
}

// Execute signs and submits call. A submission the ledger refuses, or one
// whose effects report failure, yields a *RejectedError.
func (w *Writer) Execute(ctx context.Context, call *CallDescription) (*SubmitResult, error) {
	if w.signer == nil {
		return nil, fmt.Errorf("no signer configured")
	}
	res, err := w.signer.SignAndSubmit(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", call.Target, err)
	}
	if res == nil || !res.Success {
		rej := &RejectedError{}
		if res != nil {
			rej.Digest, rej.Message = res.Digest, res.Error
		}
		return res, rej
	}

	if w.cfg.Confirmer != nil && res.Digest != "" {
		tx, err := w.cfg.Confirmer.WaitForTransaction(ctx, res.Digest, w.cfg.PollInterval)
		if err != nil {
			return res, fmt.Errorf("confirm %s: %w", res.Digest, err)
		}
		if !tx.Succeeded() {
			msg := ledger.ExecutionFailure
			if tx.Effects != nil && tx.Effects.Status.Error != "" {
				msg = tx.Effects.Status.Error
			}
			return res, &RejectedError{Digest: res.Digest, Message: msg}
		}
	}

	w.log.WithField("target", call.Target).WithField("digest", res.Digest).Info("transaction executed")
	return res, nil
}

// =============================================================================
// Profiles
// =============================================================================

// BuildSaveUserProfile builds a create when owner has no user profile and an
// update of the first one otherwise. A failed pre-read is returned as an error.
func (w *Writer) BuildSaveUserProfile(ctx context.Context, owner string, in UserProfileInput) (*CallDescription, error) {
	existing, err := w.svc.users.FindByOwner(ctx, w.svc.cfg.UserRegistryID, owner)
	switch {
	case err == nil:
		return w.builder.UpdateUserProfile(existing.ID, in)
	case errors.Is(err, ErrNotFound):
		return w.builder.CreateUserProfile(in)
	default:
		return nil, fmt.Errorf("look up user profile of %s: %w", owner, err)
	}
}

// BuildSaveEmployerProfile is BuildSaveUserProfile for employer profiles.
func (w *Writer) BuildSaveEmployerProfile(ctx context.Context, owner string, in EmployerProfileInput) (*CallDescription, error) {
	existing, err := w.svc.employers.FindByOwner(ctx, w.svc.cfg.EmployerRegistryID, owner)
	switch {
	case err == nil:
		return w.builder.UpdateEmployerProfile(existing.ID, in)
	case errors.Is(err, ErrNotFound):
		return w.builder.CreateEmployerProfile(in)
	default:
		return nil, fmt.Errorf("look up employer profile of %s: %w", owner, err)
	}
}

// =============================================================================
// Jobs
// =============================================================================

// BuildApply reads the job and builds apply_to_job only while the job takes
// applications: active, nobody hired and the deadline not yet reached.
func (w *Writer) BuildApply(ctx context.Context, in ApplyInput) (*CallDescription, error) {
	if err := w.builder.validate.Apply(in); err != nil {
		return nil, err
	}
	jobID, err := ledger.NormalizeAddress(in.JobID)
	if err != nil {
		return nil, invalid("job id", err)
	}
	job, err := fetchOne(ctx, w.svc.reader, "job", jobID, DecodeJob)
	if err != nil {
		return nil, err
	}

	now := w.builder.validate.now()
	switch {
	case job.IsFilled():
		return nil, fmt.Errorf("%w: job %s already hired %s", ErrInvalidInput, jobID, *job.HiredCandidate)
	case !job.IsActive:
		return nil, fmt.Errorf("%w: job %s is closed", ErrInvalidInput, jobID)
	case job.IsExpired(now):
		return nil, fmt.Errorf("%w: job %s deadline %s has passed", ErrInvalidInput, jobID,
			job.DeadlineTime().UTC().Format(time.RFC3339))
	}
	return w.builder.ApplyToJob(in)
}

// HireRequest names the application to hire by id. The index the contract
// needs is resolved from it on every attempt.
type HireRequest struct {
	JobID         string `json:"jobId"`
	Employer      string `json:"employer"`
	CapID         string `json:"capId,omitempty"`
	Candidate     string `json:"candidate"`
	ApplicationID string `json:"applicationId"`
}

// capFor returns capID when given, otherwise the employer's cap for jobID.
func (w *Writer) capFor(ctx context.Context, employer, jobID, capID string) (string, error) {
	if capID != "" {
		return capID, nil
	}
	owner, err := ledger.NormalizeAddress(employer)
	if err != nil {
		return "", invalid("employer address", err)
	}
	job, err := ledger.NormalizeAddress(jobID)
	if err != nil {
		return "", invalid("job id", err)
	}
	caps, err := w.svc.employerCaps(ctx, owner)
	if err != nil {
		return "", err
	}
	for _, c := range caps {
		if c.JobID == job {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("capability for job %s owned by %s: %w", job, owner, ErrNotFound)
}

// BuildHire reads the job, finds the capability and resolves the application
// index, then builds hire_candidate.
func (w *Writer) BuildHire(ctx context.Context, req HireRequest) (*CallDescription, error) {
	jobID, err := ledger.NormalizeAddress(req.JobID)
	if err != nil {
		return nil, invalid("job id", err)
	}
	job, err := fetchOne(ctx, w.svc.reader, "job", jobID, DecodeJob)
	if err != nil {
		return nil, err
	}
	if job.IsFilled() {
		return nil, fmt.Errorf("%w: job %s already hired %s", ErrInvalidInput, jobID, *job.HiredCandidate)
	}

	capID, err := w.capFor(ctx, req.Employer, jobID, req.CapID)
	if err != nil {
		return nil, err
	}
	index, err := w.svc.ResolveApplicationIndex(ctx, jobID, req.Candidate, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if index > math.MaxInt64 {
		return nil, fmt.Errorf("%w: application index %d out of range", ErrInvalidInput, index)
	}

	return w.builder.HireCandidate(HireInput{
		JobID:            jobID,
		CapID:            capID,
		Candidate:        req.Candidate,
		ApplicationIndex: int64(index),
	})
}

// HireCandidate resolves, builds and submits a hire. The index can go stale
// between resolution and execution, so an on-chain rejection triggers a fresh
// resolution and another submission, up to MaxHireAttempts. Any other error
// ends the loop.
func (w *Writer) HireCandidate(ctx context.Context, req HireRequest) (*SubmitResult, error) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxHireAttempts; attempt++ {
		call, err := w.BuildHire(ctx, req)
		if err != nil {
			return nil, err
		}
		res, err := w.Execute(ctx, call)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrRejected) {
			return res, err
		}
		lastErr = err
		w.log.WithField("job_id", req.JobID).WithField("attempt", attempt).WithError(err).
			Warn("hire rejected, re-resolving application index")
	}
	return nil, fmt.Errorf("hire after %d attempts: %w", w.cfg.MaxHireAttempts, lastErr)
}

// BuildCloseJob finds the employer's capability for jobID and builds close_job.
func (w *Writer) BuildCloseJob(ctx context.Context, employer, jobID, capID string) (*CallDescription, error) {
	capID, err := w.capFor(ctx, employer, jobID, capID)
	if err != nil {
		return nil, err
	}
	return w.builder.CloseJob(CloseJobInput{JobID: jobID, CapID: capID})
}
