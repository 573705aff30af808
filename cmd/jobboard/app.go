package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/R3E-Network/jobboard/internal/config"
	"github.com/R3E-Network/jobboard/internal/credentials"
	"github.com/R3E-Network/jobboard/internal/enrichment"
	"github.com/R3E-Network/jobboard/internal/httpapi"
	"github.com/R3E-Network/jobboard/internal/jobboard"
	"github.com/R3E-Network/jobboard/internal/ledger"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

type app struct {
	cfg     *config.Config
	log     *logger.Logger
	client  *ledger.Client
	svc     *jobboard.Service
	builder *jobboard.Builder
	writer  *jobboard.Writer
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger("jobboard")

	client, err := ledger.NewClient(cfg.LedgerClient(log.Named("ledger")))
	if err != nil {
		return nil, fmt.Errorf("ledger client: %w", err)
	}
	svc, err := jobboard.NewService(client, cfg.Service(log.Named("query")))
	if err != nil {
		return nil, fmt.Errorf("query service: %w", err)
	}
	builder, err := jobboard.NewBuilder(cfg.Builder())
	if err != nil {
		return nil, fmt.Errorf("transaction builder: %w", err)
	}
	writer, err := jobboard.NewWriter(svc, builder, nil, jobboard.WriterConfig{
		Confirmer: client,
		Logger:    log.Named("writer"),
	})
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	return &app{cfg: cfg, log: log, client: client, svc: svc, builder: builder, writer: writer}, nil
}

// =============================================================================
// Reads
// =============================================================================

func (a *app) jobs(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	status := fs.String("status", "all", "all, active or open")
	employer := fs.String("employer", "", "Only jobs posted by this address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		jobs []*jobboard.Job
		err  error
	)
	switch {
	case *employer != "":
		jobs, err = a.svc.GetJobsByEmployer(ctx, *employer)
	case *status == "all":
		jobs, err = a.svc.GetAllJobs(ctx)
	case *status == "active":
		jobs, err = a.svc.GetActiveJobs(ctx)
	case *status == "open":
		jobs, err = a.svc.GetOpenJobs(ctx, time.Now())
	default:
		return fmt.Errorf("unknown status %q", *status)
	}
	if err != nil {
		return err
	}
	return printJSON(out, jobs)
}

func (a *app) job(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: job <id>")
	}
	job, err := a.svc.GetJob(ctx, args[0])
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s: %w", args[0], jobboard.ErrNotFound)
	}

	view := httpapi.JobView{Job: job}
	if ec, ok := a.cfg.EnrichmentClient(a.log.Named("enrichment")); ok {
		client, err := enrichment.NewClient(ec)
		if err != nil {
			return err
		}
		if meta, err := client.GetJob(ctx, job.ID); err == nil {
			view.Metadata = meta
		} else {
			a.log.WithError(err).Debug("job metadata unavailable")
		}
	}
	return printJSON(out, view)
}

func (a *app) applications(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("applications", flag.ContinueOnError)
	jobID := fs.String("job", "", "Job id")
	candidate := fs.String("candidate", "", "Candidate address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *jobID != "":
		apps, err := a.svc.GetJobApplications(ctx, *jobID)
		if err != nil {
			return err
		}
		return printJSON(out, apps)
	case *candidate != "":
		apps, err := a.svc.GetUserApplications(ctx, *candidate)
		if err != nil {
			return err
		}
		return printJSON(out, apps)
	default:
		return errors.New("applications: -job or -candidate required")
	}
}

func (a *app) profile(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	user := fs.String("user", "", "Owner address of a user profile")
	employer := fs.String("employer", "", "Owner address of an employer profile")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *user != "":
		p, err := a.svc.GetUserProfileByAddress(ctx, *user)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("user profile of %s: %w", *user, jobboard.ErrNotFound)
		}
		return printJSON(out, p)
	case *employer != "":
		p, err := a.svc.GetEmployerProfileByAddress(ctx, *employer)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("employer profile of %s: %w", *employer, jobboard.ErrNotFound)
		}
		return printJSON(out, p)
	default:
		return errors.New("profile: -user or -employer required")
	}
}

func (a *app) caps(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: caps <address>")
	}
	caps, err := a.svc.GetEmployerCaps(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(out, caps)
}

func (a *app) stats(ctx context.Context, out io.Writer) error {
	stats, err := a.svc.GetStatistics(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, stats)
}

// =============================================================================
// Transactions
// =============================================================================

func (a *app) buildTx(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: build-tx <kind> -input file [-owner addr]")
	}
	kind := args[0]
	fs := flag.NewFlagSet("build-tx "+kind, flag.ContinueOnError)
	input := fs.String("input", "", "JSON input file, - for stdin")
	owner := fs.String("owner", "", "Sender address for profile upserts, hire and close")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	raw, err := readInput(*input)
	if err != nil {
		return err
	}

	var call *jobboard.CallDescription
	switch kind {
	case "user-profile":
		var in jobboard.UserProfileInput
		if err = decodeInput(raw, &in); err == nil {
			call, err = a.writer.BuildSaveUserProfile(ctx, *owner, in)
		}
	case "employer-profile":
		var in jobboard.EmployerProfileInput
		if err = decodeInput(raw, &in); err == nil {
			call, err = a.writer.BuildSaveEmployerProfile(ctx, *owner, in)
		}
	case "post-job":
		var in jobboard.PostJobInput
		if err = decodeInput(raw, &in); err == nil {
			call, err = a.builder.PostJob(in)
		}
	case "apply":
		var in jobboard.ApplyInput
		if err = decodeInput(raw, &in); err == nil {
			call, err = a.writer.BuildApply(ctx, in)
		}
	case "hire":
		var in jobboard.HireRequest
		if err = decodeInput(raw, &in); err == nil {
			if in.Employer == "" {
				in.Employer = *owner
			}
			call, err = a.writer.BuildHire(ctx, in)
		}
	case "close":
		var in jobboard.CloseJobInput
		if err = decodeInput(raw, &in); err == nil {
			call, err = a.writer.BuildCloseJob(ctx, *owner, in.JobID, in.CapID)
		}
	default:
		return fmt.Errorf("unknown transaction kind %q", kind)
	}
	if err != nil {
		return err
	}
	return printJSON(out, call)
}

func readInput(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, errors.New("-input required")
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(filepath.Clean(path))
	}
}

// =============================================================================
// Gateway
// =============================================================================

func (a *app) serve(ctx context.Context) error {
	var store credentials.Store
	if addr := a.cfg.Credentials.RedisAddr; addr != "" {
		rs := credentials.NewRedisStore(credentials.RedisConfig{
			Addr:     addr,
			Password: a.cfg.Credentials.RedisPassword,
			DB:       a.cfg.Credentials.RedisDB,
			Prefix:   a.cfg.Credentials.KeyPrefix,
		})
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("redis %s: %w", addr, err)
		}
		store = rs
	} else {
		a.log.Warn("no redis configured, sessions are kept in memory")
		store = credentials.NewMemoryStore()
	}

	sessions, err := credentials.NewManager(store, credentials.Blake2bDeriver{Salt: []byte(a.cfg.Credentials.Salt)},
		credentials.ManagerConfig{TTL: a.cfg.Credentials.SessionTTL, Logger: a.log.Named("credentials")})
	if err != nil {
		return err
	}

	opts := httpapi.Options{
		Service:           a.svc,
		Builder:           a.builder,
		Writer:            a.writer,
		Sessions:          sessions,
		Chain:             a.client,
		RequestsPerSecond: a.cfg.HTTP.RequestsPerSecond,
		Burst:             a.cfg.HTTP.Burst,
		Logger:            a.log.Named("httpapi"),
	}
	if ec, ok := a.cfg.EnrichmentClient(a.log.Named("enrichment")); ok {
		if opts.Enrichment, err = enrichment.NewClient(ec); err != nil {
			return err
		}
	}

	srv, err := httpapi.New(opts)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, a.cfg.HTTP.Addr)
}
