package enrichment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jobboard/internal/enrichment"
	"github.com/R3E-Network/jobboard/pkg/logger"
	"github.com/R3E-Network/jobboard/pkg/testutil"
)

func newTestClient(t *testing.T, path string, h http.HandlerFunc) *enrichment.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := enrichment.NewClient(enrichment.Config{
		BaseURL:      srv.URL,
		APIKey:       "k",
		EnvelopePath: path,
		Logger:       logger.NewDiscard(),
	})
	require.NoError(t, err)
	return c
}

func TestGetJob_UnwrapsEnvelope(t *testing.T) {
	jobID := testutil.Addr("10b1")
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/"+jobID, r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"id":"` + jobID + `","companyName":"Acme","remote":true,"tags":["go"],"views":7}}`))
	})

	job, err := c.GetJob(context.Background(), "0x10B1")
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, "Acme", job.CompanyName)
	assert.True(t, job.Remote)
	assert.Equal(t, []string{"go"}, job.Tags)
	assert.Equal(t, int64(7), job.Views)
}

func TestGetJob_NotFound(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such job", http.StatusNotFound)
	})

	_, err := c.GetJob(context.Background(), testutil.Addr("10b1"))
	assert.ErrorIs(t, err, enrichment.ErrNotFound)
}

func TestGetJob_NullPayloadIsNotFound(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	})

	_, err := c.GetJob(context.Background(), testutil.Addr("10b1"))
	assert.ErrorIs(t, err, enrichment.ErrNotFound)
}

func TestGetJob_InvalidID(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.GetJob(context.Background(), "job-1")
	assert.Error(t, err)
}

func TestGetJobs_CustomEnvelope(t *testing.T) {
	j1, j2 := testutil.Addr("10b1"), testutil.Addr("10b2")
	c := newTestClient(t, "$.result.items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, j1+","+j2, r.URL.Query().Get("ids"))
		w.Write([]byte(`{"result":{"items":[{"id":"` + j1 + `"},{"id":"` + j2 + `"}]}}`))
	})

	jobs, err := c.GetJobs(context.Background(), []string{j1, j2})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, j2, jobs[1].ID)

	empty, err := c.GetJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGetApplications_BareBody(t *testing.T) {
	jobID := testutil.Addr("10b1")
	c := newTestClient(t, "$", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/"+jobID+"/applications", r.URL.Path)
		w.Write([]byte(`[{"id":"a","jobId":"` + jobID + `","status":"reviewed"}]`))
	})

	apps, err := c.GetApplications(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "reviewed", apps[0].Status)
}

func TestGetApplications_EnvelopeMismatch(t *testing.T) {
	c := newTestClient(t, "$.data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})

	_, err := c.GetApplications(context.Background(), testutil.Addr("10b1"))
	assert.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := enrichment.NewClient(enrichment.Config{})
	assert.Error(t, err)

	_, err = enrichment.NewClient(enrichment.Config{BaseURL: "http://x", EnvelopePath: "$.data["})
	assert.Error(t, err)
}
