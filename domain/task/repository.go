package task

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when a task is absent or soft-deleted.
var ErrNotFound = errors.New("task not found")

// UpdateFunc receives the locked current task and returns the version to persist.
// Returning an error aborts the update without writing.
type UpdateFunc func(current Task) (Task, error)

// Repository defines the persistence operations the lifecycle engine needs.
// Soft-deleted tasks are invisible to GetByID, Update and FindByFilter.
type Repository interface {
	Insert(ctx context.Context, t Task) (Task, error)
	GetByID(ctx context.Context, id int64) (Task, error)
	// Update runs fn and the write in one transaction holding the task row,
	// so concurrent updates of the same id serialize (last writer wins).
	Update(ctx context.Context, id int64, fn UpdateFunc) (Task, error)
	FindByFilter(ctx context.Context, filter Filter) ([]Task, error)
	ExistsActive(ctx context.Context, assigneeID int64) (bool, error)
}
