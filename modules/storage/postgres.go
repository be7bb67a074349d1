package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/example/task-tracker/domain/report"
	"github.com/example/task-tracker/domain/task"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const taskColumns = `t.id, t.title, t.description, t.status, t.dead_line, t.author, t.assignee, t.created_at, t.updated_at`

// Soft-deleted rows are excluded by status name through the lookup table.
const visibleTasks = `FROM task t JOIN status s ON s.id = t.status WHERE s.name <> 'DELETED'`

const (
	insertTaskSQL = `
INSERT INTO task AS t (title, description, status, dead_line, author, assignee)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + taskColumns

	getTaskSQL = `SELECT ` + taskColumns + ` ` + visibleTasks + ` AND t.id = $1`

	lockTaskSQL = getTaskSQL + ` FOR UPDATE OF t`

	updateTaskSQL = `
UPDATE task AS t
SET title = $2, description = $3, status = $4, dead_line = $5, assignee = $6, updated_at = now()
WHERE t.id = $1
RETURNING ` + taskColumns

	filterTasksSQL = `SELECT ` + taskColumns + ` ` + visibleTasks + `
  AND ($1::smallint IS NULL OR t.status = $1)
  AND ($2::bigint IS NULL OR t.assignee = $2)
ORDER BY t.id`

	existsActiveSQL = `
SELECT EXISTS (
    SELECT 1 FROM task t JOIN status s ON s.id = t.status
    WHERE t.assignee = $1 AND s.name NOT IN ('DONE', 'DELETED')
)`

	// Status codes: 1 TO_DO, 2 IN_PROGRESS, 3 DONE. DELETED only counts toward the total.
	aggregateReportSQL = `
WITH matched AS (
    SELECT assignee, status, created_at, updated_at
    FROM task
    WHERE assignee = ANY($1) AND updated_at >= $2 AND updated_at < $3
), per_member AS (
    SELECT assignee, COUNT(*) AS total_tasks
    FROM matched
    GROUP BY assignee
), top_members AS (
    SELECT assignee, total_tasks
    FROM per_member
    ORDER BY total_tasks DESC, assignee ASC
    LIMIT 3
)
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE status = 1),
    COUNT(*) FILTER (WHERE status = 2),
    COUNT(*) FILTER (WHERE status = 3),
    (AVG(EXTRACT(EPOCH FROM (updated_at - created_at)) / 3600) FILTER (WHERE status = 3))::float8,
    (SELECT COALESCE(
        json_agg(json_build_object('assigneeId', assignee, 'tasksCount', total_tasks)
                 ORDER BY total_tasks DESC, assignee ASC),
        '[]'::json)
     FROM top_members)
FROM matched`
)

// PostgresStore implements the task and report repositories on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to databaseURL and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema files in name order. Every file is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Driver() string { return DriverPostgres }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Insert persists a new task and returns it with its id and timestamps.
func (s *PostgresStore) Insert(ctx context.Context, t task.Task) (task.Task, error) {
	created, err := scanTask(s.pool.QueryRow(ctx, insertTaskSQL,
		t.Title, t.Description, t.Status.Code(), pgDate(t.DeadLine), t.Author, t.Assignee,
	))
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	return created, nil
}

// GetByID returns a visible task or task.ErrNotFound.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (task.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, getTaskSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// Update locks the task row, applies fn and writes the result in one transaction.
func (s *PostgresStore) Update(ctx context.Context, id int64, fn task.UpdateFunc) (task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanTask(tx.QueryRow(ctx, lockTaskSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("failed to lock task: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return task.Task{}, err
	}

	updated, err := scanTask(tx.QueryRow(ctx, updateTaskSQL,
		id, next.Title, next.Description, next.Status.Code(), pgDate(next.DeadLine), next.Assignee,
	))
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return task.Task{}, fmt.Errorf("failed to commit task update: %w", err)
	}
	return updated, nil
}

// FindByFilter returns visible tasks matching filter ordered by id.
func (s *PostgresStore) FindByFilter(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	var status *int16
	if filter.Status != nil {
		code := filter.Status.Code()
		status = &code
	}

	rows, err := s.pool.Query(ctx, filterTasksSQL, status, filter.Assignee)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// ExistsActive reports whether assigneeID has a task that is neither DONE nor DELETED.
func (s *PostgresStore) ExistsActive(ctx context.Context, assigneeID int64) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, existsActiveSQL, assigneeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active tasks: %w", err)
	}
	return exists, nil
}

// AggregateReport runs the team aggregate in a single query.
func (s *PostgresStore) AggregateReport(ctx context.Context, memberIDs []int64, window report.Window) (*report.Row, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	from, to := window.Bounds()

	var (
		row     report.Row
		topJSON []byte
	)
	err := s.pool.QueryRow(ctx, aggregateReportSQL, memberIDs, from, to).Scan(
		&row.Total,
		&row.ToDo,
		&row.InProgress,
		&row.Done,
		&row.AvgHoursTaskToDone,
		&topJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate report: %w", err)
	}
	if row.Total == 0 {
		return nil, nil
	}

	if err := json.Unmarshal(topJSON, &row.TopMembers); err != nil {
		return nil, fmt.Errorf("failed to decode top members: %w", err)
	}
	return &row, nil
}

func pgDate(d task.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func scanTask(row pgx.Row) (task.Task, error) {
	var (
		t        task.Task
		code     int16
		deadLine pgtype.Date
	)
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&code,
		&deadLine,
		&t.Author,
		&t.Assignee,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return task.Task{}, err
	}

	status, err := task.StatusFromCode(code)
	if err != nil {
		return task.Task{}, err
	}
	t.Status = status
	t.DeadLine = task.DateOf(deadLine.Time)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
