package domain

import "time"

// Built-in maintenance tasks.
const (
	TaskIDRequestResume = "request-resume"
	TaskIDStoragePrune  = "storage-prune"
)

// ScheduledTask is the persisted state of a recurring maintenance task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is the error of the most recent run, empty when it succeeded.
	LastError string
}

// TaskResult records one run of a task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed counts requests resumed or calculations pruned.
	ItemsProcessed int
}

// Duration returns how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TaskConfig switches a task on and sets how often it runs.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig configures background maintenance. Enabled switches the
// whole scheduler off; TaskConfigs is keyed by task ID.
type SchedulerConfig struct {
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// GetTaskConfig returns the configuration of a task, or a disabled zero
// config for tasks that are not listed.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig resumes queued requests every five minutes and
// prunes stored calculations daily.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDRequestResume: {Enabled: true, Interval: 5 * time.Minute},
			TaskIDStoragePrune:  {Enabled: true, Interval: 24 * time.Hour},
		},
	}
}
