package driven

import (
	"context"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// SchedulerStore keeps maintenance task state across restarts, along with a
// bounded history of runs.
type SchedulerStore interface {
	// GetTask returns nil, nil when the task has never been saved.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns every saved task.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask inserts or replaces the task with the same ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask removes a task and its history.
	DeleteTask(ctx context.Context, taskID string) error

	// RecordResult appends one run to the history.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns at most limit runs of a task, newest first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory drops all but the newest keep runs of each task.
	PruneHistory(ctx context.Context, keep int) error
}
