package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/task-tracker/domain/report"
	"github.com/example/task-tracker/domain/task"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// statusRecord is the status lookup table row.
type statusRecord struct {
	ID   int16  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (statusRecord) TableName() string { return "status" }

// taskRecord is the task table row.
type taskRecord struct {
	ID          int64     `gorm:"primaryKey"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Status      int16     `gorm:"not null;index"`
	DeadLine    time.Time `gorm:"not null"`
	Author      int64     `gorm:"not null"`
	Assignee    int64     `gorm:"not null;index:idx_task_assignee_updated_at,priority:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time `gorm:"index:idx_task_assignee_updated_at,priority:2"`
}

func (taskRecord) TableName() string { return "task" }

func toRecord(t task.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status.Code(),
		DeadLine:    t.DeadLine.In(time.UTC),
		Author:      t.Author,
		Assignee:    t.Assignee,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (r taskRecord) toTask() (task.Task, error) {
	status, err := task.StatusFromCode(r.Status)
	if err != nil {
		return task.Task{}, err
	}
	return task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      status,
		DeadLine:    task.DateOf(r.DeadLine.UTC()),
		Author:      r.Author,
		Assignee:    r.Assignee,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

// SQLiteStore implements the task and report repositories with GORM on SQLite.
// The pool holds a single connection so writers serialize.
type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	if err := s.db.AutoMigrate(&statusRecord{}, &taskRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	statuses := make([]statusRecord, 0, len(task.Statuses()))
	for _, st := range task.Statuses() {
		statuses = append(statuses, statusRecord{ID: st.Code(), Name: st.String()})
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&statuses).Error; err != nil {
		return fmt.Errorf("failed to seed statuses: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Driver() string { return DriverSQLite }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// visible scopes a query to tasks whose status is not DELETED.
func visible(db *gorm.DB) *gorm.DB {
	return db.Model(&taskRecord{}).
		Select("task.*").
		Joins("JOIN status ON status.id = task.status").
		Where("status.name <> ?", task.StatusDeleted.String())
}

// Insert persists a new task and returns it with its id and timestamps.
func (s *SQLiteStore) Insert(ctx context.Context, t task.Task) (task.Task, error) {
	rec := toRecord(t)
	rec.ID = 0
	rec.CreatedAt = time.Time{}
	rec.UpdatedAt = time.Time{}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return task.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	return rec.toTask()
}

func findVisible(db *gorm.DB, id int64) (taskRecord, error) {
	var rec taskRecord
	err := visible(db).Where("task.id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return taskRecord{}, task.ErrNotFound
		}
		return taskRecord{}, fmt.Errorf("failed to get task: %w", err)
	}
	return rec, nil
}

// GetByID returns a visible task or task.ErrNotFound.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (task.Task, error) {
	rec, err := findVisible(s.db.WithContext(ctx), id)
	if err != nil {
		return task.Task{}, err
	}
	return rec.toTask()
}

// Update applies fn and writes the result in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, id int64, fn task.UpdateFunc) (task.Task, error) {
	var updated task.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := findVisible(tx, id)
		if err != nil {
			return err
		}
		current, err := rec.toTask()
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		row := toRecord(next)
		row.ID = rec.ID
		row.Author = rec.Author
		row.CreatedAt = rec.CreatedAt
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		updated, err = row.toTask()
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	return updated, nil
}

// FindByFilter returns visible tasks matching filter ordered by id.
func (s *SQLiteStore) FindByFilter(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	query := visible(s.db.WithContext(ctx))
	if filter.Status != nil {
		query = query.Where("task.status = ?", filter.Status.Code())
	}
	if filter.Assignee != nil {
		query = query.Where("task.assignee = ?", *filter.Assignee)
	}

	var recs []taskRecord
	if err := query.Order("task.id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	tasks := make([]task.Task, 0, len(recs))
	for _, rec := range recs {
		t, err := rec.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// ExistsActive reports whether assigneeID has a task that is neither DONE nor DELETED.
func (s *SQLiteStore) ExistsActive(ctx context.Context, assigneeID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Joins("JOIN status ON status.id = task.status").
		Where("task.assignee = ?", assigneeID).
		Where("status.name NOT IN ?", []string{task.StatusDone.String(), task.StatusDeleted.String()}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check active tasks: %w", err)
	}
	return count > 0, nil
}

// AggregateReport loads the members' tasks in the window and aggregates them in memory.
func (s *SQLiteStore) AggregateReport(ctx context.Context, memberIDs []int64, window report.Window) (*report.Row, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	entries, err := s.reportEntries(ctx, memberIDs, window)
	if err != nil {
		return nil, err
	}
	return report.Aggregate(entries, window), nil
}

// reportEntries returns the members' tasks whose updated_at falls in window.
// Timestamps are stored in UTC with one text layout, so the range compares in order.
func (s *SQLiteStore) reportEntries(ctx context.Context, memberIDs []int64, window report.Window) ([]report.Entry, error) {
	from, to := window.Bounds()

	var recs []taskRecord
	err := s.db.WithContext(ctx).
		Select("assignee", "status", "created_at", "updated_at").
		Where("assignee IN ?", memberIDs).
		Where("updated_at >= ? AND updated_at < ?", from, to).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load report tasks: %w", err)
	}

	entries := make([]report.Entry, 0, len(recs))
	for _, rec := range recs {
		status, err := task.StatusFromCode(rec.Status)
		if err != nil {
			return nil, err
		}
		entries = append(entries, report.Entry{
			Assignee:  rec.Assignee,
			Status:    status,
			CreatedAt: rec.CreatedAt.UTC(),
			UpdatedAt: rec.UpdatedAt.UTC(),
		})
	}
	return entries, nil
}
