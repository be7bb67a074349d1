package task

import (
	"context"
	"encoding/json"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort is the driving port of the task module.
type TaskPort interface {
	CreateTask(ctx context.Context, req *CreateTaskRequest) (domain.Task, error)
	UpdateTask(ctx context.Context, req *UpdateTaskRequest) (domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	ListTasks(ctx context.Context, req *ListTasksRequest) ([]domain.Task, error)
	HasActiveTasks(ctx context.Context, assigneeID int64) (bool, error)
}

// taskAdapter wraps ServiceContainer for type-safe cross-module communication.
type taskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates a new adapter for task services.
// container is the ServiceContainer from the task module received via SetDependencyServiceContainer.
func NewTaskAdapter(container mono.ServiceContainer) TaskPort {
	if container == nil {
		panic("task adapter requires non-nil ServiceContainer")
	}
	return &taskAdapter{container: container}
}

// CreateTask creates a task via the create-task service.
func (a *taskAdapter) CreateTask(ctx context.Context, req *CreateTaskRequest) (domain.Task, error) {
	var resp TaskResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateTask,
		json.Marshal,
		json.Unmarshal,
		req,
		&resp,
	); err != nil {
		return domain.Task{}, apperr.Dependency(err, "%s service call failed", ServiceCreateTask)
	}
	return unwrapTask(resp)
}

// UpdateTask applies a patch via the update-task service.
func (a *taskAdapter) UpdateTask(ctx context.Context, req *UpdateTaskRequest) (domain.Task, error) {
	var resp TaskResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceUpdateTask,
		json.Marshal,
		json.Unmarshal,
		req,
		&resp,
	); err != nil {
		return domain.Task{}, apperr.Dependency(err, "%s service call failed", ServiceUpdateTask)
	}
	return unwrapTask(resp)
}

// GetTask retrieves a task by ID via the get-task service.
func (a *taskAdapter) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	req := GetTaskRequest{ID: id}
	var resp TaskResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetTask,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.Task{}, apperr.Dependency(err, "%s service call failed", ServiceGetTask)
	}
	return unwrapTask(resp)
}

// ListTasks lists visible tasks via the list-tasks service.
func (a *taskAdapter) ListTasks(ctx context.Context, req *ListTasksRequest) ([]domain.Task, error) {
	var resp ListTasksResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListTasks,
		json.Marshal,
		json.Unmarshal,
		req,
		&resp,
	); err != nil {
		return nil, apperr.Dependency(err, "%s service call failed", ServiceListTasks)
	}
	if resp.Failure != nil {
		return nil, resp.Failure
	}
	return resp.Tasks, nil
}

// HasActiveTasks calls the exists-active-tasks service.
func (a *taskAdapter) HasActiveTasks(ctx context.Context, assigneeID int64) (bool, error) {
	req := ExistsActiveRequest{AssigneeID: assigneeID}
	var resp ExistsActiveResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceExistsActiveTasks,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, apperr.Dependency(err, "%s service call failed", ServiceExistsActiveTasks)
	}
	if resp.Failure != nil {
		return false, resp.Failure
	}
	return resp.Active, nil
}

func unwrapTask(resp TaskResponse) (domain.Task, error) {
	if resp.Failure != nil {
		return domain.Task{}, resp.Failure
	}
	if resp.Task == nil {
		return domain.Task{}, apperr.Dependency(nil, "empty task response")
	}
	return *resp.Task, nil
}
