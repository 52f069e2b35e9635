// Package remote sends estimation jobs to a propest worker over HTTP.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/logger"
)

// Worker API paths.
const (
	JobsPath         = "/v1/jobs"
	CapabilitiesPath = "/v1/capabilities"
	HealthPath       = "/healthz"

	// NDJSONContentType is the media type of streamed outcomes.
	NDJSONContentType = "application/x-ndjson"
)

// StreamError is the last line of an outcome stream the worker could not
// finish. It carries no job ID.
type StreamError struct {
	Error string `json:"error"`
}

const (
	// MaxRetries is the maximum number of attempts for a rate limited batch.
	MaxRetries = 3

	defaultBatchSize = 32

	// maxLineSize bounds a single NDJSON outcome line.
	maxLineSize = 1 << 20
)

// Ensure Backend implements the interface.
var _ driven.CalculationBackend = (*Backend)(nil)

// Backend posts jobs to a worker in batches and streams back the outcomes.
type Backend struct {
	endpoint  string
	client    *http.Client
	limiter   *RateLimiter
	batchSize int
	parallel  int
	caps      domain.BackendCapabilities

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New connects to the worker at cfg.Endpoint and reads its capabilities.
func New(ctx context.Context, cfg domain.BackendConfig) (*Backend, error) {
	return NewWithHTTPClient(ctx, cfg, newHTTPClient(ctx, cfg))
}

// NewWithHTTPClient creates a backend with a custom http.Client.
func NewWithHTTPClient(ctx context.Context, cfg domain.BackendConfig, client *http.Client) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: remote backend needs an endpoint", domain.ErrInvalidInput)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	parallel := cfg.Workers
	if parallel <= 0 {
		parallel = 1
	}

	b := &Backend{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		client:    client,
		limiter:   NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		batchSize: batch,
		parallel:  parallel,
	}
	if err := b.fetchCapabilities(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Builder returns a backend builder for remote backends.
func Builder() driven.BackendBuilder {
	return func(ctx context.Context, cfg domain.BackendConfig) (driven.CalculationBackend, error) {
		return New(ctx, cfg)
	}
}

// newHTTPClient authenticates with OAuth2 client credentials when configured,
// otherwise with the static bearer token, if any.
func newHTTPClient(ctx context.Context, cfg domain.BackendConfig) *http.Client {
	var client *http.Client
	switch {
	case cfg.ClientID != "" && cfg.TokenURL != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(ctx)
	case cfg.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		client = oauth2.NewClient(ctx, ts)
	default:
		client = &http.Client{}
	}
	client.Timeout = cfg.Timeout
	return client
}

func (b *Backend) fetchCapabilities(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+CapabilitiesPath, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch worker capabilities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch worker capabilities: %w", statusError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(&b.caps); err != nil {
		return fmt.Errorf("decode worker capabilities: %w", err)
	}
	logger.Debug("remote backend %s: layers %v, %d workers", b.endpoint, b.caps.Layers, b.caps.MaxWorkers)
	return nil
}

// Capabilities returns what the worker reported.
func (b *Backend) Capabilities() domain.BackendCapabilities {
	return b.caps
}

// Submit posts the jobs in batches. Jobs the worker does not report on are
// returned as failed.
func (b *Backend) Submit(ctx context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error) {
	outcomes := make(chan domain.JobOutcome)
	errs := make(chan error, 1)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		errs <- domain.ErrBackendClosed
		close(outcomes)
		close(errs)
		return outcomes, errs
	}
	b.wg.Add(1)
	b.mu.RUnlock()

	go func() {
		defer b.wg.Done()
		defer close(errs)
		defer close(outcomes)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.parallel)
		for start := 0; start < len(jobs); start += b.batchSize {
			if gctx.Err() != nil {
				break
			}
			batch := jobs[start:min(start+b.batchSize, len(jobs))]
			g.Go(func() error {
				return b.sendBatch(gctx, batch, outcomes)
			})
		}
		if err := g.Wait(); err != nil {
			errs <- err
		}
	}()

	return outcomes, errs
}

// sendBatch posts one batch, retrying while the worker is rate limiting.
func (b *Backend) sendBatch(ctx context.Context, batch []domain.Job, out chan<- domain.JobOutcome) error {
	wire := make([]domain.WireJob, len(batch))
	for i := range batch {
		wire[i] = batch[i].Wire()
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode jobs: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := b.post(ctx, body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			b.limiter.RecordRateLimit(resp)
			resp.Body.Close()
			if attempt >= MaxRetries {
				return domain.ErrRateLimited
			}
			logger.Debug("remote backend: rate limited, retrying batch (attempt %d)", attempt)
			continue
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("submit jobs: %w", statusError(resp))
		}
		return b.stream(ctx, batch, resp.Body, out)
	}
}

func (b *Backend) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+JobsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", NDJSONContentType)

	resp, err := b.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("submit jobs: %w", err)
	}
	return resp, nil
}

// stream forwards NDJSON outcomes, then fails the jobs the worker skipped
// with the worker's stream error when it sent one.
func (b *Backend) stream(ctx context.Context, batch []domain.Job, body io.Reader, out chan<- domain.JobOutcome) error {
	pending := make(map[string]domain.Job, len(batch))
	for _, job := range batch {
		pending[job.ID] = job
	}

	send := func(o domain.JobOutcome) error {
		select {
		case out <- o:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	missing := "worker returned no outcome"
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var outcome domain.JobOutcome
		if err := json.Unmarshal(line, &outcome); err != nil {
			return fmt.Errorf("decode outcome: %w", err)
		}
		if outcome.JobID == "" && outcome.Error != "" {
			logger.Warn("remote backend: worker stopped: %s", outcome.Error)
			missing = "worker stopped: " + outcome.Error
			continue
		}
		job, ok := pending[outcome.JobID]
		if !ok {
			logger.Warn("remote backend: ignoring outcome for unknown job %s", outcome.JobID)
			continue
		}
		delete(pending, outcome.JobID)
		outcome.TaskIndex = job.Task.Index
		if err := send(outcome); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("remote backend: outcome stream broken: %v", err)
	}

	for _, job := range batch {
		if _, missing := pending[job.ID]; !missing {
			continue
		}
		if err := send(domain.JobOutcome{
			JobID:     job.ID,
			TaskIndex: job.Task.Index,
			Status:    domain.OutcomeFailed,
			Error:     missing,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting jobs and waits for in-flight batches.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	b.client.CloseIdleConnections()
	return nil
}

// statusError turns an unexpected response into an error carrying its body.
func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	err := fmt.Errorf("worker returned %d: %s", resp.StatusCode, text)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Join(err, errUnauthorised)
	}
	return err
}

// errUnauthorised marks responses rejecting the backend's credentials.
var errUnauthorised = errors.New("worker rejected credentials")
