package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/adapters/driven/backend/local"
	"github.com/custodia-labs/propest/internal/adapters/driven/backend/remote"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/services"
)

// echoRunner estimates every job as its measured value.
type echoRunner struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (r *echoRunner) Run(_ context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error) {
	r.mu.Lock()
	r.jobs = append(r.jobs, jobs...)
	r.mu.Unlock()

	outcomes := make(chan domain.JobOutcome, len(jobs))
	errs := make(chan error)
	for _, job := range jobs {
		outcomes <- domain.JobOutcome{
			JobID:     job.ID,
			TaskIndex: job.Task.Index,
			Status:    domain.OutcomeEstimated,
			Value:     job.Task.Property.Value,
		}
	}
	close(outcomes)
	close(errs)
	return outcomes, errs
}

func (r *echoRunner) Capabilities() domain.BackendCapabilities { return testCaps }

func (r *echoRunner) Close() error { return nil }

// stoppingRunner estimates the first job, then fails the rest of the batch.
type stoppingRunner struct{}

func (stoppingRunner) Run(_ context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error) {
	outcomes := make(chan domain.JobOutcome, 1)
	errs := make(chan error, 1)
	outcomes <- domain.JobOutcome{
		JobID:     jobs[0].ID,
		TaskIndex: jobs[0].Task.Index,
		Status:    domain.OutcomeEstimated,
		Value:     jobs[0].Task.Property.Value,
	}
	errs <- fmt.Errorf("scratch disk full")
	close(outcomes)
	close(errs)
	return outcomes, errs
}

func (stoppingRunner) Capabilities() domain.BackendCapabilities { return testCaps }

func (stoppingRunner) Close() error { return nil }

// fixedEstimator answers every simulation job with the measured value.
type fixedEstimator struct{}

func (fixedEstimator) Layer() string                     { return domain.LayerSimulation }
func (fixedEstimator) Supports(domain.PropertyType) bool { return true }
func (fixedEstimator) Estimate(_ context.Context, job domain.Job) (domain.JobOutcome, error) {
	return domain.JobOutcome{
		Value:       job.Task.Property.Value,
		Uncertainty: domain.Q(0.001, job.Task.Property.Value.Unit),
		Provenance:  string(job.Task.ParameterSet.Content),
	}, nil
}

var testCaps = domain.BackendCapabilities{MaxWorkers: 2, Layers: []string{domain.LayerSimulation}}

func testJobs(n int) []domain.Job {
	set := domain.NewParameterSet("openff-2.0.0.offxml", "openff-2.0.0.offxml", []byte("<SMIRNOFF/>"))
	jobs := make([]domain.Job, n)
	for i := range jobs {
		jobs[i] = domain.Job{
			ID:    fmt.Sprintf("job-%d", i),
			Layer: domain.LayerSimulation,
			Task: domain.EstimationTask{
				Index: i,
				Property: domain.PhysicalProperty{
					ID:    fmt.Sprintf("density-%d", i),
					Type:  domain.PropertyDensity,
					Value: domain.Q(0.99+float64(i)/100, "g/mL"),
				},
				ParameterSet: set,
			},
		}
	}
	return jobs
}

func postJobs(t *testing.T, url, token string, jobs []domain.Job) *http.Response {
	t.Helper()
	wire := make([]domain.WireJob, len(jobs))
	for i := range jobs {
		wire[i] = jobs[i].Wire()
	}
	body, err := json.Marshal(wire)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url+remote.JobsPath, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Health(t *testing.T) {
	ts := httptest.NewServer(NewServer(&echoRunner{}, testCaps, Config{Token: "secret"}).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + remote.HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestServer_Capabilities(t *testing.T) {
	ts := httptest.NewServer(NewServer(&echoRunner{}, testCaps, Config{Token: "secret"}).Handler())
	defer ts.Close()

	t.Run("rejects missing token", func(t *testing.T) {
		resp, err := http.Get(ts.URL + remote.CapabilitiesPath)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("reports capabilities", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+remote.CapabilitiesPath, http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer secret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var caps domain.BackendCapabilities
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&caps))
		assert.Equal(t, testCaps, caps)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+remote.CapabilitiesPath, http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer secret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestServer_Jobs(t *testing.T) {
	runner := &echoRunner{}
	ts := httptest.NewServer(NewServer(runner, testCaps, Config{}).Handler())
	defer ts.Close()

	jobs := testJobs(3)
	resp := postJobs(t, ts.URL, "", jobs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, remote.NDJSONContentType, resp.Header.Get("Content-Type"))

	var outcomes []domain.JobOutcome
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var o domain.JobOutcome
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &o))
		outcomes = append(outcomes, o)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, outcomes, 3)
	assert.Equal(t, "job-1", outcomes[1].JobID)
	assert.Equal(t, jobs[1].Task.Property.Value, outcomes[1].Value)

	require.Len(t, runner.jobs, 3)
	assert.Equal(t, []byte("<SMIRNOFF/>"), runner.jobs[0].Task.ParameterSet.Content)
}

func TestServer_JobsStreamsRunError(t *testing.T) {
	ts := httptest.NewServer(NewServer(stoppingRunner{}, testCaps, Config{}).Handler())
	defer ts.Close()

	resp := postJobs(t, ts.URL, "", testJobs(3))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	var last remote.StreamError
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	assert.Equal(t, "scratch disk full", last.Error)
}

func TestServer_JobsRejectsBadBatches(t *testing.T) {
	ts := httptest.NewServer(NewServer(&echoRunner{}, testCaps, Config{}).Handler())
	defer ts.Close()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "jobs please"},
		{"missing id", `[{"layer":"simulation"}]`},
		{"duplicate id", `[{"id":"a"},{"id":"a"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+remote.JobsPath, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Get(ts.URL + remote.JobsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	ts := httptest.NewServer(NewServer(&echoRunner{}, testCaps, Config{RequestsPerSecond: 0.01, Burst: 1}).Handler())
	defer ts.Close()

	first := postJobs(t, ts.URL, "", testJobs(1))
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := postJobs(t, ts.URL, "", testJobs(1))
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get(remote.HeaderRetryAfter))
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(&echoRunner{}, testCaps, Config{})
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start("127.0.0.1:0"))

	resp, err := http.Get("http://" + s.Addr() + remote.HealthPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s := NewServer(&echoRunner{}, testCaps, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Serve(ctx, "127.0.0.1:0"))
}

func TestServer_RemoteBackendRoundTrip(t *testing.T) {
	backend := local.New(2, fixedEstimator{})
	defer backend.Close()

	ts := httptest.NewServer(NewServer(services.NewJobRunner(backend), backend.Capabilities(), Config{Token: "secret"}).Handler())
	defer ts.Close()

	ctx := context.Background()
	client, err := remote.New(ctx, domain.BackendConfig{
		Type:      domain.BackendRemote,
		Endpoint:  ts.URL,
		Token:     "secret",
		BatchSize: 2,
	})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, []string{domain.LayerSimulation}, client.Capabilities().Layers)

	jobs := testJobs(5)
	outcomes, errs := client.Submit(ctx, jobs)
	got := make(map[int]domain.JobOutcome)
	for o := range outcomes {
		got[o.TaskIndex] = o
	}
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, got, 5)
	for i, job := range jobs {
		assert.Equal(t, domain.OutcomeEstimated, got[i].Status)
		assert.Equal(t, job.Task.Property.Value, got[i].Value)
		assert.Equal(t, "<SMIRNOFF/>", got[i].Provenance, "parameter set content reaches the worker")
	}
}

func TestServer_RemoteBackendReceivesRunError(t *testing.T) {
	ts := httptest.NewServer(NewServer(stoppingRunner{}, testCaps, Config{}).Handler())
	defer ts.Close()

	ctx := context.Background()
	client, err := remote.New(ctx, domain.BackendConfig{Type: domain.BackendRemote, Endpoint: ts.URL, BatchSize: 3})
	require.NoError(t, err)
	defer client.Close()

	outcomes, errs := client.Submit(ctx, testJobs(3))
	got := make(map[int]domain.JobOutcome)
	for o := range outcomes {
		got[o.TaskIndex] = o
	}
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, got, 3)
	assert.Equal(t, domain.OutcomeEstimated, got[0].Status)
	for _, i := range []int{1, 2} {
		assert.Equal(t, domain.OutcomeFailed, got[i].Status)
		assert.Equal(t, "worker stopped: scratch disk full", got[i].Error)
	}
}
