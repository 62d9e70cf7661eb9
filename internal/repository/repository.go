// Package repository defines the TaskRepository contract shared by the
// in-memory and sqlite-backed implementations.
package repository

import (
	"context"

	"taskdog/internal/task"
)

// TaskRepository is the persistence contract every use-case and
// optimization strategy depends on. Implementations must honor the
// read-through cache / "write invalidates cache" semantics described on
// GetAll.
type TaskRepository interface {
	// GetAll returns every task in insertion order. Implementations may
	// serve this from a cache populated on first call and invalidated
	// by any write.
	GetAll(ctx context.Context) ([]*task.Task, error)

	// GetByID returns the task with id, or ErrNotFound. Bypasses the
	// GetAll cache.
	GetByID(ctx context.Context, id int) (*task.Task, error)

	// GetByIDs returns a map of id to task for every id that resolves;
	// ids that don't resolve are simply omitted.
	GetByIDs(ctx context.Context, ids []int) (map[int]*task.Task, error)

	// Save persists t, refreshing UpdatedAt, and invalidates the
	// GetAll cache.
	Save(ctx context.Context, t *task.Task) error

	// SaveAll persists every task as a single atomic batch; a partial
	// batch must never be observable by another reader.
	SaveAll(ctx context.Context, tasks []*task.Task) error

	// Delete removes the task with id if present; silent no-op
	// otherwise.
	Delete(ctx context.Context, id int) error

	// GenerateNextID returns max(id)+1 across all tasks, or 1 when
	// empty.
	GenerateNextID(ctx context.Context) (int, error)

	// Create assigns an id and timestamps, validates, persists, and
	// returns the new task.
	Create(ctx context.Context, fields task.Fields) (*task.Task, error)

	// Reload invalidates the GetAll cache unconditionally.
	Reload(ctx context.Context) error
}
