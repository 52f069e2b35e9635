package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/logger"
)

// Ensure Client implements the interface.
var _ driving.PropertyEstimator = (*Client)(nil)

// errCancelled is recorded on requests stopped by Cancel.
var errCancelled = errors.New("request cancelled")

// errFinishedElsewhere stops a run whose request was moved out of the
// running state by another process.
var errFinishedElsewhere = errors.New("request no longer running")

// DefaultStaleRequestAfter is how long a running request may go without a
// heartbeat before ResumePending treats its owner as gone.
const DefaultStaleRequestAfter = 10 * time.Minute

// Client estimates datasets against parameter sets. It is constructed with
// backend options and hides which backend ran the calculations.
type Client struct {
	backend   domain.BackendConfig
	builder   *RequestBuilder
	gateway   *Gateway
	collector *Collector
	store     driven.RequestStore

	staleAfter time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewClient creates an estimation client.
func NewClient(
	backend domain.BackendConfig,
	gateway *Gateway,
	collector *Collector,
	store driven.RequestStore,
) *Client {
	return &Client{
		backend:    backend,
		builder:    NewRequestBuilder(),
		gateway:    gateway,
		collector:  collector,
		store:      store,
		staleAfter: DefaultStaleRequestAfter,
		running:    make(map[string]context.CancelFunc),
	}
}

// SetStaleAfter changes how long a running request may go without a
// heartbeat before it is resumed. Running requests refresh their heartbeat
// three times per period.
func (c *Client) SetStaleAfter(d time.Duration) {
	if d > 0 {
		c.staleAfter = d
	}
}

// Estimate builds a request, dispatches it and returns one computed property
// per (property, parameter set) pair in the measurement's unit.
func (c *Client) Estimate(
	ctx context.Context,
	dataset *domain.PhysicalPropertyDataSet,
	sets []domain.ParameterSet,
	opts domain.RequestOptions,
) (*domain.EstimationResult, error) {
	req, err := c.builder.Build(dataset, sets, opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !c.register(req.ID, cancel) {
		return nil, fmt.Errorf("%w: request %s is already running", domain.ErrAlreadyExists, req.ID)
	}
	defer c.unregister(req.ID)

	req.Status = domain.RequestRunning
	if err := c.store.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save request: %w", err)
	}
	logger.Info("estimating request %s: %d tasks", req.ID, len(req.Tasks))
	return c.run(ctx, req)
}

// Submit builds a request and estimates it in the background.
func (c *Client) Submit(
	ctx context.Context,
	dataset *domain.PhysicalPropertyDataSet,
	sets []domain.ParameterSet,
	opts domain.RequestOptions,
) (string, error) {
	req, err := c.builder.Build(dataset, sets, opts)
	if err != nil {
		return "", err
	}
	req.Status = domain.RequestRunning
	if err := c.store.SaveRequest(ctx, req); err != nil {
		return "", fmt.Errorf("save request: %w", err)
	}
	c.launch(req)
	return req.ID, nil
}

// register records a request as running in this process. It returns false
// if the request is already running here.
func (c *Client) register(id string, cancel context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.running[id]; busy {
		return false
	}
	c.running[id] = cancel
	return true
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	delete(c.running, id)
	c.mu.Unlock()
}

// launch runs a request on its own goroutine with a cancellable context.
func (c *Client) launch(req *domain.EstimationRequest) bool {
	ctx, cancel := context.WithCancel(context.Background())
	if !c.register(req.ID, cancel) {
		cancel()
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.unregister(req.ID)
			cancel()
		}()
		if _, err := c.run(ctx, req); err != nil {
			logger.Warn("request %s: %v", req.ID, err)
		}
	}()
	return true
}

// run dispatches and collects a saved request, recording its progress.
func (c *Client) run(ctx context.Context, req *domain.EstimationRequest) (*domain.EstimationResult, error) {
	// Status updates use a detached context so a cancelled run is still recorded.
	bg := context.WithoutCancel(ctx)

	if err := c.store.UpdateStatus(bg, req.ID, domain.RequestRunning, ""); err != nil {
		return nil, fmt.Errorf("update request status: %w", err)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	beat := c.heartbeat(runCtx, cancel, req.ID)
	results, err := c.gateway.Dispatch(runCtx, req, c.backend)
	stopped := errors.Is(context.Cause(runCtx), errFinishedElsewhere)
	cancel(nil)
	<-beat
	if stopped {
		return nil, fmt.Errorf("request %s: %w", req.ID, errFinishedElsewhere)
	}
	if err != nil {
		status := domain.RequestFailed
		if errors.Is(err, context.Canceled) {
			status = domain.RequestCancelled
			err = fmt.Errorf("%w: %w", errCancelled, err)
		}
		if uerr := c.store.UpdateStatus(bg, req.ID, status, err.Error()); uerr != nil {
			logger.Warn("request %s: update status: %v", req.ID, uerr)
		}
		return nil, err
	}

	result := c.collector.Collect(bg, req, results)
	if err := c.store.SaveResult(bg, result); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	if err := c.store.UpdateStatus(bg, req.ID, domain.RequestCompleted, ""); err != nil {
		return nil, fmt.Errorf("update request status: %w", err)
	}
	logger.Info("request %s completed: %d estimated, %d unsuccessful",
		req.ID, len(result.Estimated()), len(result.Unsuccessful()))
	return result, nil
}

// heartbeat refreshes the request's UpdatedAt while it runs so other
// processes do not resume it. A request moved out of the running state
// elsewhere, e.g. by Cancel in another process, stops the run. The returned
// channel is closed once the heartbeat has stopped writing.
func (c *Client) heartbeat(ctx context.Context, cancel context.CancelCauseFunc, id string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.staleAfter / 3)
		defer ticker.Stop()
		bg := context.WithoutCancel(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			running, err := c.store.Touch(bg, id)
			if err != nil {
				logger.Warn("request %s: heartbeat: %v", id, err)
				continue
			}
			if !running {
				logger.Info("request %s was finished elsewhere, stopping", id)
				cancel(errFinishedElsewhere)
				return
			}
		}
	}()
	return done
}

// Status returns the current summary of a request.
func (c *Client) Status(ctx context.Context, id string) (*domain.RequestSummary, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := req.Summary()
	return &summary, nil
}

// Result returns the result of a finished request.
func (c *Client) Result(ctx context.Context, id string) (*domain.EstimationResult, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case domain.RequestCompleted:
		return c.store.GetResult(ctx, id)
	case domain.RequestFailed:
		return nil, fmt.Errorf("request %s failed: %s", id, req.Error)
	case domain.RequestCancelled:
		return nil, fmt.Errorf("request %s: %w", id, errCancelled)
	default:
		return nil, fmt.Errorf("request %s is %s: %w", id, req.Status, domain.ErrRequestNotFinished)
	}
}

// Wait polls until the request finishes and returns its result.
func (c *Client) Wait(ctx context.Context, id string, poll time.Duration) (*domain.EstimationResult, error) {
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		result, err := c.Result(ctx, id)
		if !errors.Is(err, domain.ErrRequestNotFinished) {
			return result, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// List returns summaries of all requests, newest first.
func (c *Client) List(ctx context.Context) ([]domain.RequestSummary, error) {
	return c.store.ListRequests(ctx)
}

// Cancel stops a queued or running request.
func (c *Client) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	cancel, running := c.running[id]
	c.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() {
		return fmt.Errorf("%w: request %s is already %s", domain.ErrInvalidInput, id, req.Status)
	}
	return c.store.UpdateStatus(ctx, id, domain.RequestCancelled, errCancelled.Error())
}

// ResumePending dispatches queued requests and running requests whose
// heartbeat is older than the stale period. Requests running in this
// process are left alone.
func (c *Client) ResumePending(ctx context.Context) (int, error) {
	resumed := 0
	cutoff := time.Now().Add(-c.staleAfter)
	for _, status := range []domain.RequestStatus{domain.RequestQueued, domain.RequestRunning} {
		reqs, err := c.store.ListByStatus(ctx, status)
		if err != nil {
			return resumed, fmt.Errorf("list %s requests: %w", status, err)
		}
		for i := range reqs {
			if status == domain.RequestRunning && reqs[i].UpdatedAt.After(cutoff) {
				continue
			}
			if c.launch(&reqs[i]) {
				logger.Info("resuming request %s", reqs[i].ID)
				resumed++
			}
		}
	}
	return resumed, nil
}

// Shutdown cancels background requests and waits for them to stop.
func (c *Client) Shutdown() {
	c.mu.Lock()
	for _, cancel := range c.running {
		cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}
