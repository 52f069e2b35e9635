package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/core/services"
)

// mockEstimator implements driving.PropertyEstimator with canned requests.
type mockEstimator struct {
	mu        sync.Mutex
	requests  map[string]*domain.RequestSummary
	results   map[string]*domain.EstimationResult
	submitted []domain.RequestOptions
	cancelled []string
	submitErr error
}

func newMockEstimator() *mockEstimator {
	return &mockEstimator{
		requests: map[string]*domain.RequestSummary{},
		results:  map[string]*domain.EstimationResult{},
	}
}

func (m *mockEstimator) Estimate(ctx context.Context, ds *domain.PhysicalPropertyDataSet, sets []domain.ParameterSet, opts domain.RequestOptions) (*domain.EstimationResult, error) {
	id, err := m.Submit(ctx, ds, sets, opts)
	if err != nil {
		return nil, err
	}
	return m.Result(ctx, id)
}

// Submit completes the request immediately, estimating every property as its measured value.
func (m *mockEstimator) Submit(_ context.Context, ds *domain.PhysicalPropertyDataSet, sets []domain.ParameterSet, opts domain.RequestOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return "", m.submitErr
	}
	id := "req-" + string(rune('a'+len(m.submitted)))
	m.submitted = append(m.submitted, opts)

	result := &domain.EstimationResult{RequestID: id}
	for _, p := range ds.Properties() {
		for _, s := range sets {
			result.Properties = append(result.Properties, domain.ComputedProperty{
				PropertyID: p.ID, ParameterSetID: s.ID, Type: p.Type,
				Value: p.Value, Layer: domain.LayerStored, Status: domain.ComputedEstimated,
			})
		}
	}
	m.results[id] = result
	m.requests[id] = &domain.RequestSummary{
		ID: id, Status: domain.RequestCompleted, CreatedAt: time.Now(),
		Properties: ds.Len(), ParameterSets: len(sets), Tasks: len(result.Properties),
	}
	return id, nil
}

func (m *mockEstimator) Status(_ context.Context, id string) (*domain.RequestSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (m *mockEstimator) Result(_ context.Context, id string) (*domain.EstimationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !s.Status.IsTerminal() {
		return nil, domain.ErrRequestNotFinished
	}
	return m.results[id], nil
}

func (m *mockEstimator) Wait(ctx context.Context, id string, _ time.Duration) (*domain.EstimationResult, error) {
	return m.Result(ctx, id)
}

func (m *mockEstimator) List(_ context.Context) ([]domain.RequestSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RequestSummary, 0, len(m.requests))
	for _, s := range m.requests {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockEstimator) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.requests[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.cancelled = append(m.cancelled, id)
	s.Status = domain.RequestCancelled
	return nil
}

func (m *mockEstimator) ResumePending(_ context.Context) (int, error) {
	return 0, nil
}

func (m *mockEstimator) add(s domain.RequestSummary, r *domain.EstimationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[s.ID] = &s
	if r != nil {
		m.results[s.ID] = r
	}
}

// mockDatasetService returns a two-property dataset for any reference.
type mockDatasetService struct {
	loaded []string
	err    error
}

func testDataset() *domain.PhysicalPropertyDataSet {
	return domain.NewDataSet(
		domain.PhysicalProperty{ID: "rho-water", Type: domain.PropertyDensity, Value: domain.Q(0.997, "g/mL")},
		domain.PhysicalProperty{ID: "rho-ethanol", Type: domain.PropertyDensity, Value: domain.Q(0.785, "g/mL")},
	)
}

func (m *mockDatasetService) LoadFile(path string) (*domain.PhysicalPropertyDataSet, error) {
	m.loaded = append(m.loaded, path)
	if m.err != nil {
		return nil, m.err
	}
	return testDataset(), nil
}

func (m *mockDatasetService) LoadURL(_ context.Context, url string) (*domain.PhysicalPropertyDataSet, error) {
	return m.LoadFile(url)
}

func (m *mockDatasetService) Formats() []string {
	return []string{".csv", ".json", ".yaml", ".yml"}
}

// mockParameterSetService resolves every reference to a set named after it.
type mockParameterSetService struct{}

func (mockParameterSetService) Resolve(_ context.Context, refs ...string) ([]domain.ParameterSet, error) {
	sets := make([]domain.ParameterSet, 0, len(refs))
	for _, ref := range refs {
		sets = append(sets, domain.NewParameterSet(ref, ref, []byte(ref)))
	}
	return sets, nil
}

func (mockParameterSetService) Schemes() []string {
	return []string{"file"}
}

var _ driving.PropertyEstimator = (*mockEstimator)(nil)

// setupTestServices installs mocks and returns them with a restore function.
func setupTestServices(t *testing.T) (*mockEstimator, *mockDatasetService, *services.SettingsService) {
	t.Helper()
	est := newMockEstimator()
	ds := &mockDatasetService{}
	settings := services.NewSettingsService(memory.NewConfigStore())

	old := Services{
		Estimator: estimator, Datasets: datasetService, ParameterSets: parameterSetService,
		Settings: settingsService, Scheduler: scheduler, SchedulerConfig: schedulerConfig, Worker: workerFactory,
	}
	SetServices(&Services{
		Estimator:     est,
		Datasets:      ds,
		ParameterSets: mockParameterSetService{},
		Settings:      settings,
	})
	t.Cleanup(func() { SetServices(&old) })
	return est, ds, settings
}

// resetFlags restores every flag to its default so tests do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "propest", rootCmd.Use)
	assert.Contains(t, rootCmd.Long, "calculation layers")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"estimate", "request", "dataset", "worker", "watch", "mcp", "tui", "settings", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"verbose", "log-level", "home"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "chatty", "request", "list")
	assert.Error(t, err)
}

func TestRootCmd_Bootstrap(t *testing.T) {
	est, _, _ := setupTestServices(t)
	SetServices(&Services{})

	var gotHome string
	released := false
	SetBootstrap(func(_ context.Context, home string) (*Services, func(), error) {
		gotHome = home
		return &Services{Estimator: est}, func() { released = true }, nil
	})
	defer SetBootstrap(nil)

	out, err := execute(t, "--home", "/tmp/propest-test", "request", "list")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/propest-test", gotHome)
	assert.Contains(t, out, "No requests.")

	require.NotNil(t, cleanup)
	cleanup()
	cleanup = nil
	assert.True(t, released)
}

func TestRootCmd_BootstrapSkippedForVersion(t *testing.T) {
	called := false
	SetBootstrap(func(context.Context, string) (*Services, func(), error) {
		called = true
		return &Services{}, func() {}, nil
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "version")
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRootCmd_BootstrapError(t *testing.T) {
	SetBootstrap(func(context.Context, string) (*Services, func(), error) {
		return nil, nil, assert.AnError
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "request", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSetServices_Nil(t *testing.T) {
	est, _, _ := setupTestServices(t)
	SetServices(nil)
	assert.Same(t, est, estimator)
}

type fakeScheduler struct {
	mu      sync.Mutex
	started chan struct{}
	stopped bool
}

func (s *fakeScheduler) Start(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func TestStartScheduler(t *testing.T) {
	setupTestServices(t)

	stop := startScheduler(context.Background())
	stop()

	sched := &fakeScheduler{started: make(chan struct{})}
	scheduler = sched
	schedulerConfig = domain.SchedulerConfig{Enabled: true}

	stop = startScheduler(context.Background())
	select {
	case <-sched.started:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not start")
	}
	stop()
	assert.True(t, sched.stopped)
}
