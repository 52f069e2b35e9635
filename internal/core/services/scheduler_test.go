package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// taskStore is an in-memory driven.SchedulerStore.
type taskStore struct {
	mu      sync.Mutex
	tasks   map[string]domain.ScheduledTask
	results []domain.TaskResult
	listErr error
}

func newTaskStore() *taskStore {
	return &taskStore{tasks: make(map[string]domain.ScheduledTask)}
}

func (s *taskStore) GetTask(_ context.Context, id string) (*domain.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *taskStore) ListTasks(context.Context) ([]domain.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *taskStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *taskStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *taskStore) RecordResult(_ context.Context, r *domain.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *r)
	return nil
}

func (s *taskStore) GetTaskHistory(_ context.Context, id string, limit int) ([]domain.TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TaskResult
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		if s.results[i].TaskID == id {
			out = append(out, s.results[i])
		}
	}
	return out, nil
}

func (s *taskStore) PruneHistory(context.Context, int) error { return nil }

func (s *taskStore) task(id string) (domain.ScheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// resumingEstimator counts ResumePending calls. When gate is set each call
// blocks until it is closed.
type resumingEstimator struct {
	driving.PropertyEstimator

	mu      sync.Mutex
	resumes int
	err     error
	gate    chan struct{}
}

func (e *resumingEstimator) ResumePending(context.Context) (int, error) {
	e.mu.Lock()
	e.resumes++
	gate := e.gate
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return 2, e.err
}

func (e *resumingEstimator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumes
}

var _ driven.SchedulerStore = (*taskStore)(nil)

func newTestScheduler(store driven.SchedulerStore, estimator driving.PropertyEstimator) *Scheduler {
	return NewScheduler(domain.DefaultSchedulerConfig(), store, estimator, memory.NewCalculationStore(), time.Hour)
}

func dueTask(id string) *domain.ScheduledTask {
	return &domain.ScheduledTask{ID: id, Interval: time.Hour, Enabled: true, NextRun: time.Now().Add(-time.Minute)}
}

func TestScheduler_Register(t *testing.T) {
	store := newTaskStore()
	s := newTestScheduler(store, nil)
	require.NoError(t, s.register(context.Background()))

	resume, ok := store.task(domain.TaskIDRequestResume)
	require.True(t, ok)
	assert.Equal(t, "Resume Requests", resume.Name)
	assert.Equal(t, 5*time.Minute, resume.Interval)
	assert.True(t, resume.NextRun.After(time.Now()))

	prune, ok := store.task(domain.TaskIDStoragePrune)
	require.True(t, ok)
	assert.Equal(t, "Prune Stored Calculations", prune.Name)
	assert.Equal(t, 24*time.Hour, prune.Interval)
}

func TestScheduler_Register_DisabledTasks(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	prune := config.TaskConfigs[domain.TaskIDStoragePrune]
	prune.Enabled = false
	config.TaskConfigs[domain.TaskIDStoragePrune] = prune
	resume := config.TaskConfigs[domain.TaskIDRequestResume]
	resume.Enabled = false
	config.TaskConfigs[domain.TaskIDRequestResume] = resume

	store := newTaskStore()
	existing := dueTask(domain.TaskIDRequestResume)
	existing.LastError = "kept"
	require.NoError(t, store.SaveTask(context.Background(), existing))

	s := NewScheduler(config, store, nil, nil, 0)
	require.NoError(t, s.register(context.Background()))

	_, ok := store.task(domain.TaskIDStoragePrune)
	assert.False(t, ok, "disabled tasks are not created")

	got, ok := store.task(domain.TaskIDRequestResume)
	require.True(t, ok)
	assert.False(t, got.Enabled)
	assert.Equal(t, "kept", got.LastError)
}

func TestScheduler_Register_IntervalChangeReschedules(t *testing.T) {
	store := newTaskStore()
	require.NoError(t, store.SaveTask(context.Background(), dueTask(domain.TaskIDRequestResume)))

	s := newTestScheduler(store, nil)
	require.NoError(t, s.register(context.Background()))

	got, _ := store.task(domain.TaskIDRequestResume)
	assert.Equal(t, 5*time.Minute, got.Interval)
	assert.True(t, got.NextRun.After(time.Now()))
}

func TestScheduler_DispatchDue(t *testing.T) {
	store := newTaskStore()
	estimator := &resumingEstimator{}
	s := newTestScheduler(store, estimator)
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDRequestResume)))
	later := dueTask(domain.TaskIDStoragePrune)
	later.NextRun = time.Now().Add(time.Hour)
	require.NoError(t, store.SaveTask(ctx, later))

	s.dispatchDue(ctx)
	s.wg.Wait()

	assert.Equal(t, 1, estimator.count())
	history, err := store.GetTaskHistory(ctx, domain.TaskIDRequestResume, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 2, history[0].ItemsProcessed)

	got, _ := store.task(domain.TaskIDRequestResume)
	assert.False(t, got.LastSuccess.IsZero())
	assert.True(t, got.NextRun.After(time.Now()))

	pruned, err := store.GetTaskHistory(ctx, domain.TaskIDStoragePrune, 10)
	require.NoError(t, err)
	assert.Empty(t, pruned)
}

func TestScheduler_DispatchDue_ListError(t *testing.T) {
	store := newTaskStore()
	store.listErr = errors.New("locked")
	estimator := &resumingEstimator{}
	s := newTestScheduler(store, estimator)

	s.dispatchDue(context.Background())
	s.wg.Wait()
	assert.Zero(t, estimator.count())
}

func TestScheduler_FailureIsRecorded(t *testing.T) {
	store := newTaskStore()
	s := newTestScheduler(store, &resumingEstimator{err: errors.New("store offline")})
	ctx := context.Background()

	s.dispatch(ctx, *dueTask(domain.TaskIDRequestResume))
	s.wg.Wait()

	got, ok := store.task(domain.TaskIDRequestResume)
	require.True(t, ok)
	assert.Equal(t, "store offline", got.LastError)
	assert.True(t, got.LastSuccess.IsZero())

	history, err := store.GetTaskHistory(ctx, domain.TaskIDRequestResume, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, "store offline", history[0].Error)
}

func TestScheduler_TaskDoesNotOverlap(t *testing.T) {
	estimator := &resumingEstimator{gate: make(chan struct{})}
	s := newTestScheduler(newTaskStore(), estimator)
	task := *dueTask(domain.TaskIDRequestResume)

	s.dispatch(context.Background(), task)
	require.Eventually(t, func() bool { return estimator.count() == 1 }, time.Second, 5*time.Millisecond)
	s.dispatch(context.Background(), task)

	close(estimator.gate)
	s.wg.Wait()
	assert.Equal(t, 1, estimator.count())
}

func TestScheduler_UnknownTask(t *testing.T) {
	store := newTaskStore()
	s := newTestScheduler(store, nil)

	s.dispatch(context.Background(), domain.ScheduledTask{ID: "reindex", Enabled: true})
	s.wg.Wait()

	history, err := store.GetTaskHistory(context.Background(), "reindex", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestScheduler_ResumeRequests_NilEstimator(t *testing.T) {
	n, err := newTestScheduler(newTaskStore(), nil).resumeRequests(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduler_PruneCalculations(t *testing.T) {
	ctx := context.Background()
	calcs := memory.NewCalculationStore()
	require.NoError(t, calcs.SaveCalculation(ctx, &domain.StoredCalculation{ID: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, calcs.SaveCalculation(ctx, &domain.StoredCalculation{ID: "new", CreatedAt: time.Now()}))

	s := NewScheduler(domain.DefaultSchedulerConfig(), newTaskStore(), nil, calcs, 24*time.Hour)
	n, err := s.pruneCalculations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calcs.Len())

	s = NewScheduler(domain.DefaultSchedulerConfig(), newTaskStore(), nil, calcs, 0)
	n, err = s.pruneCalculations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, calcs.Len())
}

func TestScheduler_StartRunsDueTasksUntilStopped(t *testing.T) {
	store := newTaskStore()
	task := dueTask(domain.TaskIDRequestResume)
	task.Interval = 5 * time.Minute
	require.NoError(t, store.SaveTask(context.Background(), task))
	estimator := &resumingEstimator{}
	s := newTestScheduler(store, estimator)
	s.SetPollInterval(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return estimator.count() >= 1 }, time.Second, 5*time.Millisecond)

	// Already running.
	assert.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_StartReturnsOnCancel(t *testing.T) {
	s := newTestScheduler(newTaskStore(), &resumingEstimator{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Start(ctx), context.Canceled)
	assert.NoError(t, s.Stop())

	// A stopped scheduler can be started again.
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Start(ctx), context.Canceled)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	assert.NoError(t, newTestScheduler(newTaskStore(), nil).Stop())
}
