// Package task is the task lifecycle module: it validates mutations against
// the identity gateway, persists them through the storage plugin and emits
// a history event after every commit.
package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/events"
	"github.com/example/task-tracker/modules/storage"
	"github.com/example/task-tracker/modules/user"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Request-reply service names.
const (
	ServiceCreateTask        = "create-task"
	ServiceUpdateTask        = "update-task"
	ServiceGetTask           = "get-task"
	ServiceListTasks         = "list-tasks"
	ServiceExistsActiveTasks = "exists-active-tasks"
)

// TaskModule provides task lifecycle services.
type TaskModule struct {
	storage  *storage.StorageModule
	userPort user.UserPort
	eventBus mono.EventBus
	service  Service
	logger   types.Logger
}

var (
	_ mono.Module                = (*TaskModule)(nil)
	_ mono.ServiceProviderModule = (*TaskModule)(nil)
	_ mono.DependentModule       = (*TaskModule)(nil)
	_ mono.UsePluginModule       = (*TaskModule)(nil)
	_ mono.EventEmitterModule    = (*TaskModule)(nil)
	_ mono.HealthCheckableModule = (*TaskModule)(nil)
)

// NewModule creates a task module. The storage plugin and the user
// dependency are injected by the framework before Start.
func NewModule(logger types.Logger) *TaskModule {
	return &TaskModule{logger: logger}
}

// NewModuleWithService creates a task module around a ready service.
func NewModuleWithService(service Service, logger types.Logger) *TaskModule {
	return &TaskModule{service: service, logger: logger}
}

func (m *TaskModule) Name() string {
	return "task"
}

func (m *TaskModule) Dependencies() []string {
	return []string{"user"}
}

func (m *TaskModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "user" {
		m.userPort = user.NewUserAdapter(container)
	}
}

// SetPlugin receives the storage plugin from the framework.
func (m *TaskModule) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	store, ok := plugin.(*storage.StorageModule)
	if !ok {
		m.logger.Error("Unexpected plugin type", "alias", alias, "expected", "*storage.StorageModule")
		return
	}
	m.storage = store
}

func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskHistoryV1.ToBase(),
	}
}

func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateTask, json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdateTask, json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetTask, json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListTasks, json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListTasks, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceExistsActiveTasks, json.Unmarshal, json.Marshal, m.existsActiveTasks,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceExistsActiveTasks, err)
	}

	m.logger.Info("Registered services", "module", "task",
		"services", []string{ServiceCreateTask, ServiceUpdateTask, ServiceGetTask, ServiceListTasks, ServiceExistsActiveTasks})
	return nil
}

func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	created, err := m.service.Create(ctx, &req)
	if err != nil {
		return TaskResponse{Failure: apperr.Wire(err)}, nil
	}
	return TaskResponse{Task: &created}, nil
}

func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	updated, err := m.service.Update(ctx, &req)
	if err != nil {
		return TaskResponse{Failure: apperr.Wire(err)}, nil
	}
	return TaskResponse{Task: &updated}, nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.GetByID(ctx, req.ID)
	if err != nil {
		return TaskResponse{Failure: apperr.Wire(err)}, nil
	}
	return TaskResponse{Task: &t}, nil
}

func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	tasks, err := m.service.GetAllByFilter(ctx, req.Filter())
	if err != nil {
		return ListTasksResponse{Failure: apperr.Wire(err)}, nil
	}
	return ListTasksResponse{Tasks: tasks}, nil
}

func (m *TaskModule) existsActiveTasks(ctx context.Context, req ExistsActiveRequest, _ *mono.Msg) (ExistsActiveResponse, error) {
	active, err := m.service.ExistsActiveTasksByAssignee(ctx, req.AssigneeID)
	if err != nil {
		return ExistsActiveResponse{Failure: apperr.Wire(err)}, nil
	}
	return ExistsActiveResponse{Active: active}, nil
}

// Start builds the lifecycle service from the injected store and user port.
func (m *TaskModule) Start(_ context.Context) error {
	if m.service != nil {
		m.logger.Info("Module started with injected service", "module", "task")
		return nil
	}
	if m.userPort == nil {
		return fmt.Errorf("userPort dependency not set")
	}
	if m.storage == nil || m.storage.Store() == nil {
		return fmt.Errorf("storage plugin not set - ensure 'storage' plugin is registered")
	}

	var publisher HistoryPublisher
	if m.eventBus != nil {
		publisher = NewEventBusPublisher(m.eventBus)
	} else {
		m.logger.Warn("eventBus not set, history events will not be published", "module", "task")
	}

	m.service = NewService(m.storage.Store(), m.userPort, publisher, m.logger)
	m.logger.Info("Module started", "module", "task", "driver", m.storage.Store().Driver())
	return nil
}

func (m *TaskModule) Stop(_ context.Context) error {
	m.logger.Info("Module stopped", "module", "task")
	return nil
}

// Health reports whether the service is wired.
func (m *TaskModule) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "service not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"events": m.eventBus != nil,
		},
	}
}

// EventBusPublisher publishes history records on the mono event bus.
type EventBusPublisher struct {
	bus mono.EventBus
}

// NewEventBusPublisher creates a publisher for bus.
func NewEventBusPublisher(bus mono.EventBus) *EventBusPublisher {
	return &EventBusPublisher{bus: bus}
}

// Publish emits event as TaskHistoryV1.
func (p *EventBusPublisher) Publish(_ context.Context, event events.TaskHistoryEvent) error {
	return events.TaskHistoryV1.Publish(p.bus, event, nil)
}
