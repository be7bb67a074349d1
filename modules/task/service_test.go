package task

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/events"
	"github.com/example/task-tracker/modules/user"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any) {}
func (m *mockLogger) Warn(_ string, _ ...any) {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }

// mockRepository is an in-memory domain.Repository.
type mockRepository struct {
	mu        sync.Mutex
	tasks     map[int64]domain.Task
	nextID    int64
	listExtra []domain.Task
	insertErr error
	updateErr error
	findErr   error
	existsErr error
	inserts   int
	updates   int
}

var _ domain.Repository = (*mockRepository)(nil)

func newMockRepository() *mockRepository {
	return &mockRepository{tasks: make(map[int64]domain.Task)}
}

func (m *mockRepository) Insert(_ context.Context, t domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return domain.Task{}, m.insertErr
	}
	m.nextID++
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	t.ID = m.nextID
	t.CreatedAt = now
	t.UpdatedAt = now
	m.tasks[t.ID] = t
	return t, nil
}

func (m *mockRepository) GetByID(_ context.Context, id int64) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status == domain.StatusDeleted {
		return domain.Task{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *mockRepository) Update(_ context.Context, id int64, fn domain.UpdateFunc) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return domain.Task{}, m.updateErr
	}
	current, ok := m.tasks[id]
	if !ok || current.Status == domain.StatusDeleted {
		return domain.Task{}, domain.ErrNotFound
	}
	next, err := fn(current)
	if err != nil {
		return domain.Task{}, err
	}
	next.UpdatedAt = current.UpdatedAt.Add(time.Hour)
	m.tasks[id] = next
	return next, nil
}

func (m *mockRepository) FindByFilter(_ context.Context, filter domain.Filter) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var result []domain.Task
	for _, t := range m.tasks {
		if t.Status == domain.StatusDeleted {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Assignee != nil && t.Assignee != *filter.Assignee {
			continue
		}
		result = append(result, t)
	}
	return append(result, m.listExtra...), nil
}

func (m *mockRepository) ExistsActive(_ context.Context, assigneeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, t := range m.tasks {
		if t.Assignee == assigneeID && t.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

// mockUserPort answers from a fixed directory and records every call.
type mockUserPort struct {
	users map[int64]user.UserInfo
	err   error
	calls [][]int64
}

func newMockUserPort(users ...user.UserInfo) *mockUserPort {
	return &mockUserPort{users: user.ByID(users)}
}

func (m *mockUserPort) ResolveUsers(_ context.Context, ids []int64) ([]user.UserInfo, error) {
	m.calls = append(m.calls, slices.Clone(ids))
	if m.err != nil {
		return nil, m.err
	}
	var found []user.UserInfo
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			found = append(found, u)
		}
	}
	return found, nil
}

type mockPublisher struct {
	events []events.TaskHistoryEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, event events.TaskHistoryEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

var (
	manager  = user.UserInfo{ID: 7, Username: "boss", Role: user.RoleManager}
	author   = user.UserInfo{ID: 1, Username: "alice", Role: user.RoleUser}
	assignee = user.UserInfo{ID: 2, Username: "bob", Role: user.RoleUser}
	other    = user.UserInfo{ID: 3, Username: "carol", Role: user.RoleUser}
)

// today is the engine's current date in every test.
var today = domain.NewDate(2024, 6, 10)

type harness struct {
	repo      *mockRepository
	users     *mockUserPort
	publisher *mockPublisher
	service   *LifecycleService
}

func newHarness() *harness {
	h := &harness{
		repo:      newMockRepository(),
		users:     newMockUserPort(manager, author, assignee, other),
		publisher: &mockPublisher{},
	}
	clock := func() time.Time { return today.In(time.Local).Add(15 * time.Hour) }
	h.service = NewService(h.repo, h.users, h.publisher, &mockLogger{}, WithClock(clock))
	return h
}

func ptr[T any](v T) *T { return &v }

func validCreate() *CreateTaskRequest {
	return &CreateTaskRequest{
		Title:       "Write report",
		Description: "Quarterly numbers",
		DeadLine:    ptr(today.AddDays(5)),
		Author:      ptr(author.ID),
		Assignee:    ptr(assignee.ID),
	}
}

// seed creates a task through the service and resets the recorded calls.
func (h *harness) seed(t *testing.T) domain.Task {
	t.Helper()
	created, err := h.service.Create(context.Background(), validCreate())
	require.NoError(t, err)
	h.users.calls = nil
	h.publisher.events = nil
	return created
}

func requireValidation(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err), "expected validation error, got %v", err)
	assert.Equal(t, message, apperr.MessageOf(err))
}

func TestLifecycleService_Create(t *testing.T) {
	h := newHarness()

	created, err := h.service.Create(context.Background(), validCreate())
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.StatusToDo, created.Status)
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, author.ID, created.Author)
	assert.Equal(t, assignee.ID, created.Assignee)
	assert.Equal(t, today.AddDays(5), created.DeadLine)

	require.Len(t, h.users.calls, 1, "author and assignee are resolved in one call")
	assert.ElementsMatch(t, []int64{author.ID, assignee.ID}, h.users.calls[0])

	require.Len(t, h.publisher.events, 1)
	ev := h.publisher.events[0]
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, created.ID, ev.TaskID)
	assert.Equal(t, author.ID, ev.CreatedBy)
	assert.Equal(t, created.UpdatedAt, ev.Moment)
	assert.Equal(t, domain.StatusToDo, ev.Data.Status)
}

func TestLifecycleService_CreateDeadlineToday(t *testing.T) {
	h := newHarness()
	req := validCreate()
	req.DeadLine = ptr(today)

	_, err := h.service.Create(context.Background(), req)
	assert.NoError(t, err)
}

func TestLifecycleService_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreateTaskRequest) *CreateTaskRequest
		message string
	}{
		{
			name:    "nil request",
			mutate:  func(*CreateTaskRequest) *CreateTaskRequest { return nil },
			message: "task data is required",
		},
		{
			name:    "blank title",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.Title = "  "; return r },
			message: "task title is required",
		},
		{
			name:    "missing description",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.Description = ""; return r },
			message: "task description is required",
		},
		{
			name:    "missing deadline",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.DeadLine = nil; return r },
			message: "task deadline is required",
		},
		{
			name:    "past deadline",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.DeadLine = ptr(today.AddDays(-1)); return r },
			message: "deadline cannot be in the past",
		},
		{
			name:    "missing author",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.Author = nil; return r },
			message: "task author is required",
		},
		{
			name:    "missing assignee",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.Assignee = nil; return r },
			message: "task assignee is required",
		},
		{
			name:    "title checked before description",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.Title = ""; r.Description = ""; return r },
			message: "task title is required",
		},
		{
			name:    "unknown author",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.Author = ptr(int64(99)); return r },
			message: "user with id = 99 not found",
		},
		{
			name:    "unknown assignee",
			mutate:  func(r *CreateTaskRequest) *CreateTaskRequest { r.Assignee = ptr(int64(98)); return r },
			message: "user with id = 98 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()

			_, err := h.service.Create(context.Background(), tt.mutate(validCreate()))
			requireValidation(t, err, tt.message)
			assert.Zero(t, h.repo.inserts, "nothing may be persisted")
			assert.Empty(t, h.publisher.events, "nothing may be published")
		})
	}
}

func TestLifecycleService_CreateIdentityUnavailable(t *testing.T) {
	h := newHarness()
	h.users.err = apperr.Dependency(errors.New("connection refused"), "identity service unavailable")

	_, err := h.service.Create(context.Background(), validCreate())
	require.Error(t, err)
	assert.True(t, apperr.IsDependency(err))
	assert.Zero(t, h.repo.inserts)
}

func TestLifecycleService_CreateStoreFailure(t *testing.T) {
	h := newHarness()
	h.repo.insertErr = errors.New("disk full")

	_, err := h.service.Create(context.Background(), validCreate())
	require.Error(t, err)
	assert.True(t, apperr.IsDependency(err))
	assert.Empty(t, h.publisher.events)
}

func TestLifecycleService_PublishFailureIsIgnored(t *testing.T) {
	h := newHarness()
	h.publisher.err = errors.New("bus closed")

	created, err := h.service.Create(context.Background(), validCreate())
	require.NoError(t, err)

	stored, err := h.service.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)
}

func TestLifecycleService_Update(t *testing.T) {
	h := newHarness()
	created := h.seed(t)

	updated, err := h.service.Update(context.Background(), &UpdateTaskRequest{
		ID:     ptr(created.ID),
		Editor: ptr(assignee.ID),
		Title:  domain.Some("New title"),
		Status: domain.Some(domain.StatusInProgress),
	})
	require.NoError(t, err)

	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Equal(t, created.Assignee, updated.Assignee)
	assert.Equal(t, created.Author, updated.Author)

	require.Len(t, h.users.calls, 1)
	assert.Equal(t, []int64{assignee.ID}, h.users.calls[0])

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, assignee.ID, h.publisher.events[0].CreatedBy)
	assert.Equal(t, updated.UpdatedAt, h.publisher.events[0].Moment)
}

func TestLifecycleService_UpdateReassignByManager(t *testing.T) {
	h := newHarness()
	created := h.seed(t)

	updated, err := h.service.Update(context.Background(), &UpdateTaskRequest{
		ID:       ptr(created.ID),
		Editor:   ptr(manager.ID),
		Assignee: domain.Some(other.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.Assignee)

	require.Len(t, h.users.calls, 1, "editor and assignee are resolved in one call")
	assert.ElementsMatch(t, []int64{manager.ID, other.ID}, h.users.calls[0])
}

func TestLifecycleService_UpdateValidation(t *testing.T) {
	h := newHarness()
	created := h.seed(t)

	tests := []struct {
		name    string
		req     *UpdateTaskRequest
		message string
	}{
		{
			name:    "nil request",
			req:     nil,
			message: "update data is required",
		},
		{
			name:    "missing id",
			req:     &UpdateTaskRequest{Editor: ptr(manager.ID)},
			message: "id of the task to update is required",
		},
		{
			name:    "missing editor",
			req:     &UpdateTaskRequest{ID: ptr(created.ID)},
			message: "editor id is required",
		},
		{
			name:    "unknown editor",
			req:     &UpdateTaskRequest{ID: ptr(created.ID), Editor: ptr(int64(99)), Title: domain.Some("x")},
			message: "editor with id = 99 not found",
		},
		{
			name:    "reassign by non-manager",
			req:     &UpdateTaskRequest{ID: ptr(created.ID), Editor: ptr(author.ID), Assignee: domain.Some(other.ID)},
			message: "editor with id = 1 does not have role MANAGER",
		},
		{
			name:    "role checked before assignee existence",
			req:     &UpdateTaskRequest{ID: ptr(created.ID), Editor: ptr(author.ID), Assignee: domain.Some(int64(99))},
			message: "editor with id = 1 does not have role MANAGER",
		},
		{
			name:    "unknown assignee",
			req:     &UpdateTaskRequest{ID: ptr(created.ID), Editor: ptr(manager.ID), Assignee: domain.Some(int64(99))},
			message: "user with id = 99 not found",
		},
		{
			name:    "past deadline",
			req:     &UpdateTaskRequest{ID: ptr(created.ID), Editor: ptr(manager.ID), DeadLine: domain.Some(today.AddDays(-1))},
			message: "deadline cannot be in the past",
		},
		{
			name:    "illegal transition",
			req:     &UpdateTaskRequest{ID: ptr(created.ID), Editor: ptr(manager.ID), Status: domain.Some(domain.StatusDone)},
			message: "status transition TO_DO → DONE is impossible",
		},
		{
			name:    "blank title",
			req:     &UpdateTaskRequest{ID: ptr(created.ID), Editor: ptr(manager.ID), Title: domain.Some(" ")},
			message: "task title must not be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.publisher.events = nil

			_, err := h.service.Update(context.Background(), tt.req)
			requireValidation(t, err, tt.message)
			assert.Empty(t, h.publisher.events)

			stored, err := h.service.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, created, stored, "a rejected update must not change the task")
		})
	}
}

func TestLifecycleService_UpdateSameStatusIsNoop(t *testing.T) {
	h := newHarness()
	created := h.seed(t)

	updated, err := h.service.Update(context.Background(), &UpdateTaskRequest{
		ID:     ptr(created.ID),
		Editor: ptr(author.ID),
		Status: domain.Some(domain.StatusToDo),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusToDo, updated.Status)
}

func TestLifecycleService_UpdateLifecycle(t *testing.T) {
	h := newHarness()
	created := h.seed(t)
	ctx := context.Background()

	for _, next := range []domain.Status{domain.StatusInProgress, domain.StatusDone, domain.StatusDeleted} {
		_, err := h.service.Update(ctx, &UpdateTaskRequest{
			ID:     ptr(created.ID),
			Editor: ptr(author.ID),
			Status: domain.Some(next),
		})
		require.NoError(t, err, "moving to %s", next)
	}
	assert.Len(t, h.publisher.events, 3)

	_, err := h.service.GetByID(ctx, created.ID)
	assert.True(t, apperr.IsNotFound(err), "deleted tasks are invisible")

	_, err = h.service.Update(ctx, &UpdateTaskRequest{
		ID:     ptr(created.ID),
		Editor: ptr(author.ID),
		Title:  domain.Some("revived"),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, "task with id 1 not found", apperr.MessageOf(err))
}

func TestLifecycleService_UpdateStoreFailure(t *testing.T) {
	h := newHarness()
	created := h.seed(t)
	h.repo.updateErr = errors.New("deadlock detected")

	_, err := h.service.Update(context.Background(), &UpdateTaskRequest{
		ID:     ptr(created.ID),
		Editor: ptr(author.ID),
		Title:  domain.Some("x"),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsDependency(err))
	assert.Empty(t, h.publisher.events)
}

func TestLifecycleService_GetByIDNotFound(t *testing.T) {
	h := newHarness()

	_, err := h.service.GetByID(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, "task with id 42 not found", apperr.MessageOf(err))
}

func TestLifecycleService_GetAllByFilter(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	first := h.seed(t)
	second := h.seed(t)
	h.repo.listExtra = []domain.Task{first}

	tasks, err := h.service.GetAllByFilter(ctx, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2, "duplicates are removed")
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)
	assert.Empty(t, h.users.calls, "no identity lookup without an assignee filter")

	tasks, err = h.service.GetAllByFilter(ctx, domain.Filter{Assignee: ptr(assignee.ID), Status: ptr(domain.StatusToDo)})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Len(t, h.users.calls, 1)

	_, err = h.service.GetAllByFilter(ctx, domain.Filter{Assignee: ptr(int64(99))})
	requireValidation(t, err, "user with id = 99 not found")
}

func TestLifecycleService_GetAllByFilterStoreFailure(t *testing.T) {
	h := newHarness()
	h.repo.findErr = errors.New("timeout")

	_, err := h.service.GetAllByFilter(context.Background(), domain.Filter{})
	assert.True(t, apperr.IsDependency(err))
}

func TestLifecycleService_ExistsActiveTasksByAssignee(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	active, err := h.service.ExistsActiveTasksByAssignee(ctx, assignee.ID)
	require.NoError(t, err)
	assert.False(t, active)

	h.seed(t)
	active, err = h.service.ExistsActiveTasksByAssignee(ctx, assignee.ID)
	require.NoError(t, err)
	assert.True(t, active)

	h.repo.existsErr = errors.New("gone")
	_, err = h.service.ExistsActiveTasksByAssignee(ctx, assignee.ID)
	assert.True(t, apperr.IsDependency(err))
}
