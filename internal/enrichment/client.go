// Package enrichment reads off-chain job and application metadata from the
// board's REST API. Records are keyed by the same ids used on the ledger.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/R3E-Network/jobboard/internal/httputil"
	"github.com/R3E-Network/jobboard/internal/ledger"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// DefaultEnvelopePath selects the payload inside the API's response envelope.
const DefaultEnvelopePath = "$.data"

// ErrNotFound is returned when the API has no record for an id.
var ErrNotFound = errors.New("enrichment: not found")

// Job is the off-chain view of a job.
type Job struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"companyName,omitempty"`
	Location    string    `json:"location,omitempty"`
	Remote      bool      `json:"remote"`
	Tags        []string  `json:"tags,omitempty"`
	Views       int64     `json:"views"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Application is the off-chain view of an application.
type Application struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Candidate string    `json:"candidate"`
	Status    string    `json:"status,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	// EnvelopePath is a JSONPath into each response; "$" takes the body as is.
	EnvelopePath string
	Timeout      time.Duration
	MaxRetries   int
	Logger       *logger.Logger
}

// Client is the enrichment API client.
type Client struct {
	http *httputil.Client
	path string
	log  *logger.Logger
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("enrichment base URL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("enrichment base URL: %w", err)
	}

	path := cfg.EnvelopePath
	if path == "" {
		path = DefaultEnvelopePath
	}
	if _, err := jsonpath.New(path); err != nil {
		return nil, fmt.Errorf("envelope path %q: %w", path, err)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("enrichment")
	}

	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		path: path,
		log:  log,
	}, nil
}

// GetJob returns the metadata of one job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	id, err := ledger.NormalizeAddress(jobID)
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}

	var job Job
	if err := c.get(ctx, "/jobs/"+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobs returns the metadata of the given jobs. Ids the API does not know
// are absent from the result.
func (c *Client) GetJobs(ctx context.Context, jobIDs []string) ([]Job, error) {
	ids := make([]string, 0, len(jobIDs))
	for _, raw := range jobIDs {
		id, err := ledger.NormalizeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("job id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}

	q := url.Values{"ids": {strings.Join(ids, ",")}}
	jobs := []Job{}
	if err := c.get(ctx, "/jobs?"+q.Encode(), &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetApplications returns the metadata of every application to a job.
func (c *Client) GetApplications(ctx context.Context, jobID string) ([]Application, error) {
	id, err := ledger.NormalizeAddress(jobID)
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}

	apps := []Application{}
	if err := c.get(ctx, "/jobs/"+id+"/applications", &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	resp, err := c.http.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}

	var doc any
	if err := httputil.DecodeResponse(resp, &doc); err != nil {
		if httputil.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("GET %s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return c.unwrap(doc, target)
}

// unwrap selects the envelope path from doc and decodes it into target.
func (c *Client) unwrap(doc any, target any) error {
	payload := doc
	if c.path != "$" {
		v, err := jsonpath.Get(c.path, doc)
		if err != nil {
			c.log.WithField("path", c.path).WithError(err).Debug("envelope path did not match")
			return fmt.Errorf("envelope %s: %w", c.path, err)
		}
		payload = v
	}
	if payload == nil {
		return ErrNotFound
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("re-encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
