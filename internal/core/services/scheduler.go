package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// DefaultSchedulerPoll is how often the scheduler looks for due tasks.
	DefaultSchedulerPoll = time.Minute

	// taskHistoryKeep is the number of results kept per task.
	taskHistoryKeep = 100
)

// maintenanceTask is a built-in task the scheduler knows how to run.
type maintenanceTask struct {
	id   string
	name string
	run  func(ctx context.Context) (int, error)
}

// Scheduler runs the maintenance tasks of a long-running process: resuming
// requests left queued by an earlier process and pruning old stored
// calculations. Task state lives in a SchedulerStore so intervals survive
// restarts.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	estimator driving.PropertyEstimator
	calcStore driven.CalculationStore
	retention time.Duration
	poll      time.Duration

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	inFlight map[string]bool
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. Stored calculations older than retention
// are pruned; zero disables pruning.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	estimator driving.PropertyEstimator,
	calcStore driven.CalculationStore,
	retention time.Duration,
) *Scheduler {
	return &Scheduler{
		config:    config,
		store:     store,
		estimator: estimator,
		calcStore: calcStore,
		retention: retention,
		poll:      DefaultSchedulerPoll,
		inFlight:  make(map[string]bool),
	}
}

// SetPollInterval changes how often due tasks are checked. Must be called
// before Start.
func (s *Scheduler) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.poll = d
	}
}

func (s *Scheduler) tasks() []maintenanceTask {
	return []maintenanceTask{
		{id: domain.TaskIDRequestResume, name: "Resume Requests", run: s.resumeRequests},
		{id: domain.TaskIDStoragePrune, name: "Prune Stored Calculations", run: s.pruneCalculations},
	}
}

func (s *Scheduler) task(id string) (maintenanceTask, bool) {
	for _, t := range s.tasks() {
		if t.id == id {
			return t, true
		}
	}
	return maintenanceTask{}, false
}

// Start registers the tasks and runs due ones until ctx is cancelled or Stop
// is called. A second Start while running returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.stopCh == stop && s.running {
			s.running = false
			close(stop)
		}
		s.mu.Unlock()
	}()

	if err := s.register(ctx); err != nil {
		logger.Warn("scheduler: register tasks: %v", err)
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.dispatchDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// Stop ends the loop and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// register stores every built-in task with its configured interval. Tasks
// switched off in the configuration are disabled rather than removed so
// their history is kept.
func (s *Scheduler) register(ctx context.Context) error {
	for _, t := range s.tasks() {
		cfg := s.config.GetTaskConfig(t.id)

		stored, err := s.store.GetTask(ctx, t.id)
		if err != nil {
			return fmt.Errorf("get task %s: %w", t.id, err)
		}
		switch {
		case stored == nil && !cfg.Enabled:
			continue
		case stored == nil:
			stored = &domain.ScheduledTask{ID: t.id, NextRun: time.Now().Add(cfg.Interval)}
		case stored.Interval != cfg.Interval && cfg.Enabled:
			stored.NextRun = time.Now().Add(cfg.Interval)
		}
		stored.Name = t.name
		stored.Enabled = cfg.Enabled
		if cfg.Enabled {
			stored.Interval = cfg.Interval
		}
		if err := s.store.SaveTask(ctx, stored); err != nil {
			return fmt.Errorf("save task %s: %w", t.id, err)
		}
	}
	return nil
}

// dispatchDue starts every enabled task whose next run has passed.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	stored, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range stored {
		task := stored[i]
		if task.Enabled && !task.NextRun.After(now) {
			s.dispatch(ctx, task)
		}
	}
}

// dispatch runs the task in the background unless it is already running.
func (s *Scheduler) dispatch(ctx context.Context, task domain.ScheduledTask) {
	def, ok := s.task(task.ID)
	if !ok {
		logger.Warn("scheduler: unknown task %s", task.ID)
		return
	}

	s.mu.Lock()
	if s.inFlight[task.ID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[task.ID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, task.ID)
			s.mu.Unlock()
			s.wg.Done()
		}()
		s.execute(ctx, def, task)
	}()
}

// execute runs one task and records its outcome.
func (s *Scheduler) execute(ctx context.Context, def maintenanceTask, task domain.ScheduledTask) {
	result := domain.TaskResult{TaskID: task.ID, StartedAt: time.Now()}
	n, err := def.run(ctx)
	result.EndedAt = time.Now()
	result.ItemsProcessed = n

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)
	if err != nil {
		result.Error = err.Error()
		task.LastError = result.Error
		logger.Warn("scheduler: %s failed: %v", task.ID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		logger.Debug("scheduler: %s processed %d items", task.ID, n)
	}

	if err := s.store.SaveTask(ctx, &task); err != nil {
		logger.Warn("scheduler: save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, &result); err != nil {
		logger.Warn("scheduler: record result for %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, taskHistoryKeep); err != nil {
		logger.Warn("scheduler: prune history: %v", err)
	}
}

// resumeRequests dispatches requests left queued by a previous process.
func (s *Scheduler) resumeRequests(ctx context.Context) (int, error) {
	if s.estimator == nil {
		return 0, nil
	}
	return s.estimator.ResumePending(ctx)
}

// pruneCalculations drops stored calculations older than the retention period.
func (s *Scheduler) pruneCalculations(ctx context.Context) (int, error) {
	if s.calcStore == nil || s.retention <= 0 {
		return 0, nil
	}
	return s.calcStore.PruneCalculations(ctx, time.Now().Add(-s.retention))
}
