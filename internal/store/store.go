package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = eris.New("store: not found")

// TaskFilter specifies criteria for listing tasks.
type TaskFilter struct {
	Status model.TaskStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the task engine.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus) error
	UpdateTaskProgress(ctx context.Context, taskID string, progress model.Progress) error
	CompleteTask(ctx context.Context, taskID string, stats model.TaskStats, logs []string) error
	FailTask(ctx context.Context, taskID string, taskErr string, logs []string) error

	// Results
	SaveResults(ctx context.Context, taskID string, subtaskIndex int, records []model.Person) error
	GetResults(ctx context.Context, taskID string) ([]model.Person, error)

	// Detail-page cache, keyed by detail link
	GetCachedPages(ctx context.Context, links []string) (map[string]string, error)
	SetCachedPages(ctx context.Context, pages map[string]string, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
