package jobboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/jobboard/internal/ledger"
	"github.com/R3E-Network/jobboard/internal/metrics"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// Config identifies the deployed contract and its singletons.
type Config struct {
	PackageID          string
	BoardID            string
	UserRegistryID     string
	EmployerRegistryID string
	// Concurrency bounds per-id fetches of one scan. Defaults to DefaultConcurrency.
	Concurrency int
	Logger      *logger.Logger
}

func (c *Config) normalize() error {
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"package id", &c.PackageID},
		{"board id", &c.BoardID},
		{"user registry id", &c.UserRegistryID},
		{"employer registry id", &c.EmployerRegistryID},
	} {
		id, err := ledger.NormalizeAddress(*f.v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.v = id
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Logger == nil {
		c.Logger = logger.NewDefault("jobboard")
	}
	return nil
}

// Service is the read API of the job board. It holds no mutable state and
// re-reads the ledger on every call, so one Service is safe for concurrent
// use.
//
// Ledger failures (transport errors, missing objects, undecodable objects) are
// logged and degrade to nil or empty results. The returned error is only set
// for malformed caller input and wraps ErrInvalidInput.
type Service struct {
	reader ObjectReader
	cfg    Config
	log    *logger.Logger

	jobs         *RegistryScanner[Job]
	users        *RegistryScanner[UserProfile]
	employers    *RegistryScanner[EmployerProfile]
	applications *SideRecordWalker[Application]
}

// NewService builds the read API over reader.
func NewService(reader ObjectReader, cfg Config) (*Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("object reader required")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	log := cfg.Logger

	return &Service{
		reader: reader,
		cfg:    cfg,
		log:    log,
		jobs: NewRegistryScanner(reader, BoardKind, "job", DecodeJob,
			func(j *Job) string { return j.Employer }, cfg.Concurrency, log.Named("jobs")),
		users: NewRegistryScanner(reader, UserRegistryKind, "user_profile", DecodeUserProfile,
			func(p *UserProfile) string { return p.Owner }, cfg.Concurrency, log.Named("user_profiles")),
		employers: NewRegistryScanner(reader, EmployerRegistryKind, "employer_profile", DecodeEmployerProfile,
			func(p *EmployerProfile) string { return p.Owner }, cfg.Concurrency, log.Named("employer_profiles")),
		applications: NewApplicationWalker(reader, cfg.Concurrency, log.Named("applications")),
	}, nil
}

// Config returns the normalized configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// degrade logs a read failure that is about to be hidden from the caller.
func (s *Service) degrade(op string, err error, fields logrus.Fields) {
	entry := s.log.WithField("op", op).WithFields(fields).WithError(err)
	if errors.Is(err, ErrNotFound) {
		entry.Debug("read returned nothing")
		return
	}
	entry.Warn("read failed, returning empty result")
}

func invalid(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidInput, what, err)
}

// =============================================================================
// Single objects
// =============================================================================

// fetchOne reads and decodes one object, returning every failure.
func fetchOne[T any](ctx context.Context, reader ObjectReader, record, id string,
	decode func(*ledger.ObjectResponse) (*T, error)) (*T, error) {
	obj, err := reader.GetObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", record, id, err)
	}
	v, err := decode(obj)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordDecodeFailure(record)
		}
		return nil, fmt.Errorf("decode %s %s: %w", record, id, err)
	}
	return v, nil
}

func getOne[T any](ctx context.Context, s *Service, op, record, id string,
	decode func(*ledger.ObjectResponse) (*T, error)) (*T, error) {
	norm, err := ledger.NormalizeAddress(id)
	if err != nil {
		return nil, invalid(record+" id", err)
	}
	v, err := fetchOne(ctx, s.reader, record, norm, decode)
	if err != nil {
		s.degrade(op, err, logrus.Fields{"object_id": norm})
		return nil, nil
	}
	return v, nil
}

// GetBoard returns the Board registry, or nil when it cannot be read.
func (s *Service) GetBoard(ctx context.Context) (*Registry, error) {
	reg, err := s.jobs.Registry(ctx, s.cfg.BoardID)
	if err != nil {
		s.degrade("GetBoard", err, logrus.Fields{"object_id": s.cfg.BoardID})
		return nil, nil
	}
	return reg, nil
}

// GetJob returns the job, or nil when it does not exist or cannot be read.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return getOne(ctx, s, "GetJob", "job", jobID, DecodeJob)
}

// GetUserProfile returns the user profile with the given id, or nil.
func (s *Service) GetUserProfile(ctx context.Context, profileID string) (*UserProfile, error) {
	return getOne(ctx, s, "GetUserProfile", "user_profile", profileID, DecodeUserProfile)
}

// GetEmployerProfile returns the employer profile with the given id, or nil.
func (s *Service) GetEmployerProfile(ctx context.Context, profileID string) (*EmployerProfile, error) {
	return getOne(ctx, s, "GetEmployerProfile", "employer_profile", profileID, DecodeEmployerProfile)
}

// =============================================================================
// Jobs
// =============================================================================

// GetAllJobs returns every decodable job in Board order.
func (s *Service) GetAllJobs(ctx context.Context) ([]*Job, error) {
	jobs, err := s.jobs.ListAll(ctx, s.cfg.BoardID)
	if err != nil {
		s.degrade("GetAllJobs", err, logrus.Fields{"object_id": s.cfg.BoardID})
		return []*Job{}, nil
	}
	return jobs, nil
}

// GetActiveJobs returns the jobs that are active and have no hired candidate.
// Deadlines are not applied; see GetOpenJobs.
func (s *Service) GetActiveJobs(ctx context.Context) ([]*Job, error) {
	jobs, _ := s.GetAllJobs(ctx)
	return filterJobs(jobs, (*Job).IsOpen), nil
}

// GetOpenJobs returns the active, unfilled jobs whose deadline is after now.
func (s *Service) GetOpenJobs(ctx context.Context, now time.Time) ([]*Job, error) {
	jobs, _ := s.GetAllJobs(ctx)
	return filterJobs(jobs, func(j *Job) bool { return j.AcceptsApplications(now) }), nil
}

// GetJobsByEmployer returns the jobs posted by employer. Jobs have no
// owner-indexed registry, so this is always a full Board scan.
func (s *Service) GetJobsByEmployer(ctx context.Context, employer string) ([]*Job, error) {
	addr, err := ledger.NormalizeAddress(employer)
	if err != nil {
		return nil, invalid("employer address", err)
	}
	jobs, _ := s.GetAllJobs(ctx)
	return filterJobs(jobs, func(j *Job) bool { return j.Employer == addr }), nil
}

func filterJobs(jobs []*Job, keep func(*Job) bool) []*Job {
	out := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		if keep(j) {
			out = append(out, j)
		}
	}
	return out
}

// =============================================================================
// Profiles
// =============================================================================

// GetAllUserProfiles returns every decodable user profile in registry order.
func (s *Service) GetAllUserProfiles(ctx context.Context) ([]*UserProfile, error) {
	profiles, err := s.users.ListAll(ctx, s.cfg.UserRegistryID)
	if err != nil {
		s.degrade("GetAllUserProfiles", err, logrus.Fields{"object_id": s.cfg.UserRegistryID})
		return []*UserProfile{}, nil
	}
	return profiles, nil
}

// GetAllEmployerProfiles returns every decodable employer profile in registry order.
func (s *Service) GetAllEmployerProfiles(ctx context.Context) ([]*EmployerProfile, error) {
	profiles, err := s.employers.ListAll(ctx, s.cfg.EmployerRegistryID)
	if err != nil {
		s.degrade("GetAllEmployerProfiles", err, logrus.Fields{"object_id": s.cfg.EmployerRegistryID})
		return []*EmployerProfile{}, nil
	}
	return profiles, nil
}

// GetUserProfileByAddress returns the first profile in registry order owned
// by owner, or nil. Several profiles per owner are possible on the ledger.
func (s *Service) GetUserProfileByAddress(ctx context.Context, owner string) (*UserProfile, error) {
	return findByOwner(ctx, s, "GetUserProfileByAddress", s.users, s.cfg.UserRegistryID, owner)
}

// GetEmployerProfileByAddress returns the first employer profile in registry
// order owned by owner, or nil.
func (s *Service) GetEmployerProfileByAddress(ctx context.Context, owner string) (*EmployerProfile, error) {
	return findByOwner(ctx, s, "GetEmployerProfileByAddress", s.employers, s.cfg.EmployerRegistryID, owner)
}

func findByOwner[T any](ctx context.Context, s *Service, op string, scanner *RegistryScanner[T],
	registryID, owner string) (*T, error) {
	v, err := scanner.FindByOwner(ctx, registryID, owner)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, ErrInvalidInput):
		return nil, err
	default:
		s.degrade(op, err, logrus.Fields{"owner": owner})
		return nil, nil
	}
}

// =============================================================================
// Applications
// =============================================================================

// GetJobApplications returns the applications attached to a job, ordered by
// (candidate, index). A job without applications yields an empty slice.
func (s *Service) GetJobApplications(ctx context.Context, jobID string) ([]*Application, error) {
	id, err := ledger.NormalizeAddress(jobID)
	if err != nil {
		return nil, invalid("job id", err)
	}
	apps, err := s.applications.ListChildren(ctx, id)
	if err != nil {
		s.degrade("GetJobApplications", err, logrus.Fields{"job_id": id})
		return []*Application{}, nil
	}
	return apps, nil
}

// GetUserApplications returns every application submitted by candidate across
// all jobs, grouped in Board order. It walks the applications of every job.
func (s *Service) GetUserApplications(ctx context.Context, candidate string) ([]*Application, error) {
	addr, err := ledger.NormalizeAddress(candidate)
	if err != nil {
		return nil, invalid("candidate address", err)
	}
	jobs, _ := s.GetAllJobs(ctx)

	perJob := make([][]*Application, len(jobs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			apps, err := s.applications.ListChildren(ctx, job.ID)
			if err != nil {
				s.degrade("GetUserApplications", err, logrus.Fields{"job_id": job.ID})
				return nil
			}
			for _, a := range apps {
				if a.Candidate == addr {
					perJob[i] = append(perJob[i], a)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := []*Application{}
	for _, apps := range perJob {
		out = append(out, apps...)
	}
	return out, nil
}

// ResolveApplicationIndex returns the per-candidate index the contract uses
// to address an application. It reads the job's applications fresh on every
// call and, unlike the read API, reports every failure.
func (s *Service) ResolveApplicationIndex(ctx context.Context, jobID, candidate, applicationID string) (uint64, error) {
	job, err := ledger.NormalizeAddress(jobID)
	if err != nil {
		return 0, invalid("job id", err)
	}
	addr, err := ledger.NormalizeAddress(candidate)
	if err != nil {
		return 0, invalid("candidate address", err)
	}
	appID, err := ledger.NormalizeAddress(applicationID)
	if err != nil {
		return 0, invalid("application id", err)
	}

	app, err := s.applications.FindChild(ctx, job, func(a *Application) bool { return a.ID == appID })
	if err != nil {
		return 0, fmt.Errorf("application %s of job %s: %w", appID, job, err)
	}
	if app.Candidate != addr {
		return 0, fmt.Errorf("%w: application %s belongs to %s, not %s", ErrInvalidInput, appID, app.Candidate, addr)
	}
	return app.Index, nil
}

// =============================================================================
// Capabilities
// =============================================================================

func (s *Service) capType() string {
	return s.cfg.PackageID + "::" + ModuleJobBoard + "::" + StructEmployerCap
}

// employerCaps lists the EmployerCaps owned by owner, returning every failure.
func (s *Service) employerCaps(ctx context.Context, owner string) ([]*EmployerCap, error) {
	caps := []*EmployerCap{}
	var cursor *string
	for page := 0; ; page++ {
		if page >= maxWalkPages {
			return nil, fmt.Errorf("owned objects of %s: more than %d pages", owner, maxWalkPages)
		}
		res, err := s.reader.GetOwnedObjects(ctx, owner, s.capType(), cursor, ledger.MaxPageSize)
		if err != nil {
			return nil, fmt.Errorf("owned objects of %s: %w", owner, err)
		}
		for i := range res.Data {
			ec, err := DecodeEmployerCap(&res.Data[i])
			if err != nil {
				metrics.RecordDecodeFailure("employer_cap")
				s.log.WithField("owner", owner).WithError(err).Debug("dropping employer cap")
				continue
			}
			if ec.Owner == "" {
				ec.Owner = owner
			}
			caps = append(caps, ec)
		}
		if !res.HasNextPage || res.NextCursor == nil {
			break
		}
		if cursor != nil && *cursor == *res.NextCursor {
			return nil, fmt.Errorf("owned objects of %s: cursor %s did not advance", owner, *cursor)
		}
		next := *res.NextCursor
		cursor = &next
	}
	return caps, nil
}

// GetEmployerCaps returns the job capabilities owned by owner.
func (s *Service) GetEmployerCaps(ctx context.Context, owner string) ([]*EmployerCap, error) {
	addr, err := ledger.NormalizeAddress(owner)
	if err != nil {
		return nil, invalid("owner address", err)
	}
	caps, err := s.employerCaps(ctx, addr)
	if err != nil {
		s.degrade("GetEmployerCaps", err, logrus.Fields{"owner": addr})
		return []*EmployerCap{}, nil
	}
	return caps, nil
}

// GetEmployerCapForJob returns the capability owned by owner that authorizes
// mutations of jobID, or nil.
func (s *Service) GetEmployerCapForJob(ctx context.Context, owner, jobID string) (*EmployerCap, error) {
	job, err := ledger.NormalizeAddress(jobID)
	if err != nil {
		return nil, invalid("job id", err)
	}
	caps, err := s.GetEmployerCaps(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, c := range caps {
		if c.JobID == job {
			return c, nil
		}
	}
	return nil, nil
}
