package task

import (
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/pkg/apperr"
)

// CreateTaskRequest is the request for creating a task.
// Pointer fields distinguish "missing" from zero values.
type CreateTaskRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DeadLine    *domain.Date `json:"deadLine"`
	Author      *int64       `json:"author"`
	Assignee    *int64       `json:"assignee"`
}

// UpdateTaskRequest is a sparse patch. ID and Editor are required, the rest optional.
type UpdateTaskRequest struct {
	ID          *int64                         `json:"id"`
	Editor      *int64                         `json:"editor"`
	Title       domain.Optional[string]        `json:"title,omitzero"`
	Description domain.Optional[string]        `json:"description,omitzero"`
	DeadLine    domain.Optional[domain.Date]   `json:"deadLine,omitzero"`
	Assignee    domain.Optional[int64]         `json:"assignee,omitzero"`
	Status      domain.Optional[domain.Status] `json:"status,omitzero"`
}

// Patch returns the field changes carried by the request.
func (r *UpdateTaskRequest) Patch() domain.Patch {
	return domain.Patch{
		Title:       r.Title,
		Description: r.Description,
		DeadLine:    r.DeadLine,
		Assignee:    r.Assignee,
		Status:      r.Status,
	}
}

// GetTaskRequest is the request for getting a task.
type GetTaskRequest struct {
	ID int64 `json:"id"`
}

// ListTasksRequest filters tasks. Nil fields are unconstrained.
type ListTasksRequest struct {
	Status   *domain.Status `json:"status,omitempty"`
	Assignee *int64         `json:"assignee,omitempty"`
}

// Filter converts the request into a repository filter.
func (r ListTasksRequest) Filter() domain.Filter {
	return domain.Filter{Status: r.Status, Assignee: r.Assignee}
}

// ExistsActiveRequest asks whether an assignee has unfinished tasks.
type ExistsActiveRequest struct {
	AssigneeID int64 `json:"assigneeId"`
}

// TaskResponse carries a task or the reason it could not be produced.
type TaskResponse struct {
	Task    *domain.Task  `json:"task,omitempty"`
	Failure *apperr.Error `json:"failure,omitempty"`
}

// ListTasksResponse carries the matching tasks.
type ListTasksResponse struct {
	Tasks   []domain.Task `json:"tasks"`
	Failure *apperr.Error `json:"failure,omitempty"`
}

// ExistsActiveResponse answers ExistsActiveRequest.
type ExistsActiveResponse struct {
	Active  bool          `json:"active"`
	Failure *apperr.Error `json:"failure,omitempty"`
}
