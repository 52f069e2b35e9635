package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// mockEstimator is a mock implementation of driving.PropertyEstimator.
type mockEstimator struct {
	result    *domain.EstimationResult
	summary   *domain.RequestSummary
	summaries []domain.RequestSummary
	err       error

	submitted   int
	estimated   int
	lastOptions domain.RequestOptions
	lastSets    []domain.ParameterSet
}

func (m *mockEstimator) Estimate(
	_ context.Context,
	_ *domain.PhysicalPropertyDataSet,
	sets []domain.ParameterSet,
	opts domain.RequestOptions,
) (*domain.EstimationResult, error) {
	m.estimated++
	m.lastSets = sets
	m.lastOptions = opts
	return m.result, m.err
}

func (m *mockEstimator) Submit(
	_ context.Context,
	_ *domain.PhysicalPropertyDataSet,
	sets []domain.ParameterSet,
	opts domain.RequestOptions,
) (string, error) {
	m.submitted++
	m.lastSets = sets
	m.lastOptions = opts
	if m.err != nil {
		return "", m.err
	}
	return m.summary.ID, nil
}

func (m *mockEstimator) Status(_ context.Context, _ string) (*domain.RequestSummary, error) {
	return m.summary, m.err
}

func (m *mockEstimator) Result(_ context.Context, _ string) (*domain.EstimationResult, error) {
	return m.result, m.err
}

func (m *mockEstimator) Wait(_ context.Context, _ string, _ time.Duration) (*domain.EstimationResult, error) {
	return m.result, m.err
}

func (m *mockEstimator) List(_ context.Context) ([]domain.RequestSummary, error) {
	return m.summaries, m.err
}

func (m *mockEstimator) Cancel(_ context.Context, _ string) error {
	return m.err
}

func (m *mockEstimator) ResumePending(_ context.Context) (int, error) {
	return 0, m.err
}

// mockDatasetService is a mock implementation of driving.DatasetService.
type mockDatasetService struct {
	dataset  *domain.PhysicalPropertyDataSet
	err      error
	fromFile string
	fromURL  string
}

func (m *mockDatasetService) LoadFile(path string) (*domain.PhysicalPropertyDataSet, error) {
	m.fromFile = path
	return m.dataset, m.err
}

func (m *mockDatasetService) LoadURL(_ context.Context, url string) (*domain.PhysicalPropertyDataSet, error) {
	m.fromURL = url
	return m.dataset, m.err
}

func (m *mockDatasetService) Formats() []string {
	return []string{".json"}
}

// mockParameterSetService is a mock implementation of driving.ParameterSetService.
type mockParameterSetService struct {
	sets []domain.ParameterSet
	err  error
	refs []string
}

func (m *mockParameterSetService) Resolve(_ context.Context, refs ...string) ([]domain.ParameterSet, error) {
	m.refs = refs
	return m.sets, m.err
}

func (m *mockParameterSetService) Schemes() []string {
	return []string{"file"}
}

func newTestPorts() (*Ports, *mockEstimator, *mockDatasetService, *mockParameterSetService) {
	est := &mockEstimator{}
	ds := &mockDatasetService{dataset: domain.NewDataSet()}
	ps := &mockParameterSetService{
		sets: []domain.ParameterSet{domain.NewParameterSet("openff-2.0.0.offxml", "openff-2.0.0.offxml", []byte("<SMIRNOFF/>"))},
	}
	return &Ports{Estimator: est, Datasets: ds, ParameterSets: ps}, est, ds, ps
}

func testResult() *domain.EstimationResult {
	return &domain.EstimationResult{
		RequestID: "req-1",
		Properties: []domain.ComputedProperty{
			{
				PropertyID:     "density-1",
				ParameterSetID: "ps-abc",
				Type:           domain.PropertyDensity,
				Status:         domain.ComputedEstimated,
				Value:          domain.Q(0.997, "g/mL"),
				Uncertainty:    domain.Q(0.001, "g/mL"),
				Layer:          domain.LayerSimulation,
			},
			{
				PropertyID:     "density-2",
				ParameterSetID: "ps-abc",
				Type:           domain.PropertyDensity,
				Status:         domain.ComputedFailed,
				Value:          domain.Q(0, "g/mL"),
				Error:          "no calculation layer could estimate the property",
			},
		},
		Exceptions:  []string{"density-2: no calculation layer could estimate the property"},
		CompletedAt: time.Now(),
	}
}
