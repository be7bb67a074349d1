package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/task-tracker/domain/report"
	"github.com/example/task-tracker/domain/task"
)

// fixture lets the shared store tests rewrite timestamps, which stores manage themselves.
type fixture struct {
	store    Store
	setTimes func(t *testing.T, id int64, createdAt, updatedAt time.Time)
}

func newTask(assignee int64) task.Task {
	return task.Task{
		Title:       "Title",
		Description: "description",
		Status:      task.StatusToDo,
		DeadLine:    task.NewDate(2030, 1, 15),
		Author:      1,
		Assignee:    assignee,
	}
}

func mustInsert(t *testing.T, s Store, tk task.Task) task.Task {
	t.Helper()
	created, err := s.Insert(context.Background(), tk)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return created
}

func setStatus(t *testing.T, s Store, id int64, status task.Status) task.Task {
	t.Helper()
	updated, err := s.Update(context.Background(), id, func(cur task.Task) (task.Task, error) {
		cur.Status = status
		return cur, nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	return updated
}

func runStoreTests(t *testing.T, newFixture func(t *testing.T) fixture) {
	t.Run("InsertAndGet", func(t *testing.T) {
		f := newFixture(t)
		created := mustInsert(t, f.store, newTask(2))

		if created.ID == 0 {
			t.Fatal("expected store to assign an id")
		}
		if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
			t.Error("expected store-managed timestamps")
		}

		got, err := f.store.GetByID(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got != created {
			t.Errorf("GetByID() = %+v, want %+v", got, created)
		}

		again, err := f.store.GetByID(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if again != got {
			t.Error("expected repeated reads to be equal")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.store.GetByID(context.Background(), 999999); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SoftDeletedIsInvisible", func(t *testing.T) {
		f := newFixture(t)
		created := mustInsert(t, f.store, newTask(2))
		setStatus(t, f.store, created.ID, task.StatusDeleted)

		if _, err := f.store.GetByID(context.Background(), created.ID); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("expected ErrNotFound for deleted task, got %v", err)
		}
		_, err := f.store.Update(context.Background(), created.ID, func(cur task.Task) (task.Task, error) {
			return cur, nil
		})
		if !errors.Is(err, task.ErrNotFound) {
			t.Errorf("expected ErrNotFound when updating deleted task, got %v", err)
		}

		tasks, err := f.store.FindByFilter(context.Background(), task.Filter{})
		if err != nil {
			t.Fatalf("FindByFilter() error = %v", err)
		}
		for _, tk := range tasks {
			if tk.Status == task.StatusDeleted {
				t.Errorf("FindByFilter returned deleted task %d", tk.ID)
			}
		}
	})

	t.Run("UpdateAppliesFunc", func(t *testing.T) {
		f := newFixture(t)
		created := mustInsert(t, f.store, newTask(2))
		time.Sleep(5 * time.Millisecond)

		updated, err := f.store.Update(context.Background(), created.ID, func(cur task.Task) (task.Task, error) {
			cur.Title = "Changed"
			cur.Assignee = 3
			cur.Status = task.StatusInProgress
			cur.DeadLine = task.NewDate(2031, 2, 3)
			return cur, nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		if updated.Title != "Changed" || updated.Assignee != 3 || updated.Status != task.StatusInProgress {
			t.Errorf("unexpected update result %+v", updated)
		}
		if updated.DeadLine != task.NewDate(2031, 2, 3) {
			t.Errorf("expected deadline 2031-02-03, got %s", updated.DeadLine)
		}
		if updated.Author != created.Author || !updated.CreatedAt.Equal(created.CreatedAt) {
			t.Error("author and created_at must not change")
		}
		if !updated.UpdatedAt.After(created.UpdatedAt) {
			t.Errorf("expected updated_at to advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
		}

		got, _ := f.store.GetByID(context.Background(), created.ID)
		if got != updated {
			t.Errorf("persisted %+v, returned %+v", got, updated)
		}
	})

	t.Run("UpdateFuncErrorRollsBack", func(t *testing.T) {
		f := newFixture(t)
		created := mustInsert(t, f.store, newTask(2))
		boom := errors.New("rejected")

		_, err := f.store.Update(context.Background(), created.ID, func(cur task.Task) (task.Task, error) {
			return task.Task{}, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error to surface, got %v", err)
		}

		got, _ := f.store.GetByID(context.Background(), created.ID)
		if got != created {
			t.Errorf("task changed after rejected update: %+v", got)
		}
	})

	t.Run("ConcurrentUpdatesSerialize", func(t *testing.T) {
		f := newFixture(t)
		created := mustInsert(t, f.store, newTask(2))

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.store.Update(context.Background(), created.ID, func(cur task.Task) (task.Task, error) {
					cur.Assignee++
					return cur, nil
				})
				if err != nil {
					t.Errorf("Update() error = %v", err)
				}
			}()
		}
		wg.Wait()

		got, _ := f.store.GetByID(context.Background(), created.ID)
		if got.Assignee != 2+workers {
			t.Errorf("expected %d serialized increments, got assignee %d", workers, got.Assignee)
		}
	})

	t.Run("FindByFilter", func(t *testing.T) {
		f := newFixture(t)
		a := mustInsert(t, f.store, newTask(100))
		b := mustInsert(t, f.store, newTask(100))
		c := mustInsert(t, f.store, newTask(200))
		setStatus(t, f.store, b.ID, task.StatusInProgress)

		assignee := int64(100)
		inProgress := task.StatusInProgress

		byAssignee, err := f.store.FindByFilter(context.Background(), task.Filter{Assignee: &assignee})
		if err != nil {
			t.Fatalf("FindByFilter() error = %v", err)
		}
		if ids := taskIDs(byAssignee); !sameIDs(ids, []int64{a.ID, b.ID}) {
			t.Errorf("assignee filter returned %v", ids)
		}

		both, err := f.store.FindByFilter(context.Background(), task.Filter{Assignee: &assignee, Status: &inProgress})
		if err != nil {
			t.Fatalf("FindByFilter() error = %v", err)
		}
		if ids := taskIDs(both); !sameIDs(ids, []int64{b.ID}) {
			t.Errorf("combined filter returned %v", ids)
		}

		all, err := f.store.FindByFilter(context.Background(), task.Filter{})
		if err != nil {
			t.Fatalf("FindByFilter() error = %v", err)
		}
		found := map[int64]bool{}
		for _, tk := range all {
			found[tk.ID] = true
		}
		if !found[a.ID] || !found[b.ID] || !found[c.ID] {
			t.Errorf("unconstrained filter missed tasks: %v", taskIDs(all))
		}
	})

	t.Run("ExistsActive", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		done := mustInsert(t, f.store, newTask(300))
		setStatus(t, f.store, done.ID, task.StatusInProgress)
		setStatus(t, f.store, done.ID, task.StatusDone)
		deleted := mustInsert(t, f.store, newTask(300))
		setStatus(t, f.store, deleted.ID, task.StatusDeleted)

		active, err := f.store.ExistsActive(ctx, 300)
		if err != nil {
			t.Fatalf("ExistsActive() error = %v", err)
		}
		if active {
			t.Error("DONE and DELETED tasks must not count as active")
		}

		mustInsert(t, f.store, newTask(300))
		active, err = f.store.ExistsActive(ctx, 300)
		if err != nil {
			t.Fatalf("ExistsActive() error = %v", err)
		}
		if !active {
			t.Error("expected a TO_DO task to count as active")
		}
	})

	t.Run("AggregateReport", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		day := func(d, h int) time.Time { return time.Date(2024, 5, d, h, 0, 0, 0, time.UTC) }

		t1 := mustInsert(t, f.store, newTask(400))
		t2 := mustInsert(t, f.store, newTask(400))
		setStatus(t, f.store, t2.ID, task.StatusInProgress)
		setStatus(t, f.store, t2.ID, task.StatusDone)
		t3 := mustInsert(t, f.store, newTask(401))
		setStatus(t, f.store, t3.ID, task.StatusDeleted)
		outside := mustInsert(t, f.store, newTask(401))
		other := mustInsert(t, f.store, newTask(402))

		f.setTimes(t, t1.ID, day(2, 0), day(2, 0))
		f.setTimes(t, t2.ID, day(3, 0), day(3, 12))
		f.setTimes(t, t3.ID, day(31, 0), day(31, 23))
		f.setTimes(t, outside.ID, day(1, 0), day(1, 0).AddDate(0, 1, 0))
		f.setTimes(t, other.ID, day(4, 0), day(4, 0))

		window := report.Window{Start: task.NewDate(2024, 5, 1), End: task.NewDate(2024, 5, 31)}
		row, err := f.store.AggregateReport(ctx, []int64{400, 401}, window)
		if err != nil {
			t.Fatalf("AggregateReport() error = %v", err)
		}
		if row == nil {
			t.Fatal("expected a report row")
		}

		if row.Total != 3 || row.ToDo != 1 || row.InProgress != 0 || row.Done != 1 {
			t.Errorf("unexpected counts %+v", row)
		}
		if row.AvgHoursTaskToDone == nil || *row.AvgHoursTaskToDone < 11.999 || *row.AvgHoursTaskToDone > 12.001 {
			t.Errorf("expected 12 average hours, got %v", row.AvgHoursTaskToDone)
		}
		want := []report.MemberTaskCount{{AssigneeID: 400, TasksCount: 2}, {AssigneeID: 401, TasksCount: 1}}
		if len(row.TopMembers) != len(want) || row.TopMembers[0] != want[0] || row.TopMembers[1] != want[1] {
			t.Errorf("unexpected top members %+v", row.TopMembers)
		}

		empty, err := f.store.AggregateReport(ctx, []int64{400}, report.Window{
			Start: task.NewDate(2020, 1, 1), End: task.NewDate(2020, 1, 2),
		})
		if err != nil {
			t.Fatalf("AggregateReport() error = %v", err)
		}
		if empty != nil {
			t.Errorf("expected nil row for an empty window, got %+v", empty)
		}

		none, err := f.store.AggregateReport(ctx, nil, window)
		if err != nil || none != nil {
			t.Errorf("expected nil row for no members, got %+v, %v", none, err)
		}
	})
}

func taskIDs(tasks []task.Task) []int64 {
	ids := make([]int64, 0, len(tasks))
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	return ids
}

func sameIDs(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
