package task

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/events"
	"github.com/example/task-tracker/modules/user"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Service is the task lifecycle engine.
type Service interface {
	Create(ctx context.Context, req *CreateTaskRequest) (domain.Task, error)
	Update(ctx context.Context, req *UpdateTaskRequest) (domain.Task, error)
	GetByID(ctx context.Context, id int64) (domain.Task, error)
	GetAllByFilter(ctx context.Context, filter domain.Filter) ([]domain.Task, error)
	ExistsActiveTasksByAssignee(ctx context.Context, assigneeID int64) (bool, error)
}

// HistoryPublisher emits audit records. Delivery is best effort.
type HistoryPublisher interface {
	Publish(ctx context.Context, event events.TaskHistoryEvent) error
}

// LifecycleService validates and applies task mutations.
type LifecycleService struct {
	repo      domain.Repository
	users     user.UserPort
	publisher HistoryPublisher
	logger    types.Logger
	now       func() time.Time
}

var _ Service = (*LifecycleService)(nil)

// Option configures a LifecycleService.
type Option func(*LifecycleService)

// WithClock overrides the clock used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *LifecycleService) { s.now = now }
}

// NewService creates the lifecycle engine. publisher may be nil.
func NewService(repo domain.Repository, users user.UserPort, publisher HistoryPublisher, logger types.Logger, opts ...Option) *LifecycleService {
	s := &LifecycleService{
		repo:      repo,
		users:     users,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req, persists a TO_DO task and publishes its history record.
func (s *LifecycleService) Create(ctx context.Context, req *CreateTaskRequest) (domain.Task, error) {
	if err := s.validateCreate(req); err != nil {
		return domain.Task{}, err
	}
	if _, err := s.requireMembers(ctx, *req.Author, *req.Assignee); err != nil {
		return domain.Task{}, err
	}

	created, err := s.repo.Insert(ctx, domain.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.StatusToDo,
		DeadLine:    *req.DeadLine,
		Author:      *req.Author,
		Assignee:    *req.Assignee,
	})
	if err != nil {
		return domain.Task{}, apperr.AsDependency(err, "task store insert")
	}

	s.publish(ctx, created, created.Author)
	return created, nil
}

func (s *LifecycleService) validateCreate(req *CreateTaskRequest) error {
	switch {
	case req == nil:
		return apperr.Validation("task data is required")
	case strings.TrimSpace(req.Title) == "":
		return apperr.Validation("task title is required")
	case strings.TrimSpace(req.Description) == "":
		return apperr.Validation("task description is required")
	case req.DeadLine == nil:
		return apperr.Validation("task deadline is required")
	}
	if err := s.validateDeadline(*req.DeadLine); err != nil {
		return err
	}
	switch {
	case req.Author == nil:
		return apperr.Validation("task author is required")
	case req.Assignee == nil:
		return apperr.Validation("task assignee is required")
	}
	return nil
}

func (s *LifecycleService) validateDeadline(deadLine domain.Date) error {
	if deadLine.Before(domain.DateOf(s.now())) {
		return apperr.Validation("deadline cannot be in the past")
	}
	return nil
}

// Update validates the patch, then merges and persists it under the store's row lock.
// Only a MANAGER may change the assignee.
func (s *LifecycleService) Update(ctx context.Context, req *UpdateTaskRequest) (domain.Task, error) {
	switch {
	case req == nil:
		return domain.Task{}, apperr.Validation("update data is required")
	case req.ID == nil:
		return domain.Task{}, apperr.Validation("id of the task to update is required")
	case req.Editor == nil:
		return domain.Task{}, apperr.Validation("editor id is required")
	}

	ids := []int64{*req.Editor}
	newAssignee, assigneeSet := req.Assignee.Get()
	if assigneeSet {
		ids = append(ids, newAssignee)
	}
	members, err := s.resolve(ctx, ids)
	if err != nil {
		return domain.Task{}, err
	}

	editor, ok := members[*req.Editor]
	if !ok {
		return domain.Task{}, apperr.Validation("editor with id = %d not found", *req.Editor)
	}
	if assigneeSet {
		if !editor.IsManager() {
			return domain.Task{}, apperr.Validation("editor with id = %d does not have role %s", editor.ID, user.RoleManager)
		}
		if _, ok := members[newAssignee]; !ok {
			return domain.Task{}, apperr.Validation("user with id = %d not found", newAssignee)
		}
	}
	if deadLine, ok := req.DeadLine.Get(); ok {
		if err := s.validateDeadline(deadLine); err != nil {
			return domain.Task{}, err
		}
	}

	patch := req.Patch()
	updated, err := s.repo.Update(ctx, *req.ID, func(current domain.Task) (domain.Task, error) {
		return domain.Merge(current, patch)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Task{}, apperr.NotFound("task with id %d not found", *req.ID)
		}
		return domain.Task{}, apperr.AsDependency(err, "task store update")
	}

	s.publish(ctx, updated, editor.ID)
	return updated, nil
}

// GetByID returns a task that is not soft-deleted.
func (s *LifecycleService) GetByID(ctx context.Context, id int64) (domain.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Task{}, apperr.NotFound("task with id %d not found", id)
		}
		return domain.Task{}, apperr.AsDependency(err, "task store read")
	}
	return t, nil
}

// GetAllByFilter lists visible tasks. A given assignee must exist.
// The result holds each task once, ordered by id.
func (s *LifecycleService) GetAllByFilter(ctx context.Context, filter domain.Filter) ([]domain.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown task status %s", *filter.Status)
	}
	if filter.Assignee != nil {
		if _, err := s.requireMembers(ctx, *filter.Assignee); err != nil {
			return nil, err
		}
	}

	tasks, err := s.repo.FindByFilter(ctx, filter)
	if err != nil {
		return nil, apperr.AsDependency(err, "task store query")
	}

	seen := make(map[int64]struct{}, len(tasks))
	result := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == domain.StatusDeleted {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b domain.Task) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// ExistsActiveTasksByAssignee reports whether the assignee has a task that is neither DONE nor DELETED.
func (s *LifecycleService) ExistsActiveTasksByAssignee(ctx context.Context, assigneeID int64) (bool, error) {
	active, err := s.repo.ExistsActive(ctx, assigneeID)
	if err != nil {
		return false, apperr.AsDependency(err, "task store query")
	}
	return active, nil
}

// resolve looks ids up in one identity call and indexes the result.
func (s *LifecycleService) resolve(ctx context.Context, ids []int64) (map[int64]user.UserInfo, error) {
	users, err := s.users.ResolveUsers(ctx, ids)
	if err != nil {
		return nil, apperr.AsDependency(err, "identity lookup")
	}
	return user.ByID(users), nil
}

// requireMembers fails with the first id, in argument order, that does not exist.
func (s *LifecycleService) requireMembers(ctx context.Context, ids ...int64) (map[int64]user.UserInfo, error) {
	members, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := members[id]; !ok {
			return nil, apperr.Validation("user with id = %d not found", id)
		}
	}
	return members, nil
}

// publish emits the history record after commit. Failures are logged and dropped.
func (s *LifecycleService) publish(ctx context.Context, t domain.Task, editorID int64) {
	if s.publisher == nil {
		return
	}
	event := events.NewTaskHistoryEvent(uuid.NewString(), t, editorID)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish task history",
			"task_id", t.ID,
			"event_id", event.EventID,
			"error", err)
	}
}
