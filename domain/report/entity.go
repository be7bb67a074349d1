// Package report contains the team report aggregate and its in-memory
// aggregation used by stores that cannot run the aggregate query natively.
package report

import (
	"context"
	"math"
	"time"

	"github.com/example/task-tracker/domain/task"
)

// TopMembersLimit is the size of the member ranking in a report.
const TopMembersLimit = 3

// MemberTaskCount pairs an assignee with the number of tasks matched in the window.
type MemberTaskCount struct {
	AssigneeID int64 `json:"assigneeId"`
	TasksCount int64 `json:"tasksCount"`
}

// Report is a derived, non-persisted team aggregate.
type Report struct {
	TotalTeamTasks           int64             `json:"totalTeamTasks"`
	ToDoTeamTasks            int64             `json:"todoTeamTasks"`
	InProgressTeamTasks      int64             `json:"inProgressTeamTasks"`
	DoneTeamTasks            int64             `json:"doneTeamTasks"`
	AvgHoursTaskToDone       *float64          `json:"avgHoursTaskToDone"`
	TopMembersWithTasksCount []MemberTaskCount `json:"topMembersWithTasksCount"`
}

// Row is the raw result of the store's aggregate query.
type Row struct {
	Total              int64
	ToDo               int64
	InProgress         int64
	Done               int64
	AvgHoursTaskToDone *float64
	TopMembers         []MemberTaskCount
}

// Window is an inclusive range of calendar days applied to a task's updated_at.
type Window struct {
	Start task.Date
	End   task.Date
}

// Bounds returns the half-open UTC instant range [Start 00:00, End+1 00:00).
func (w Window) Bounds() (from, to time.Time) {
	return w.Start.In(time.UTC), w.End.AddDays(1).In(time.UTC)
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	from, to := w.Bounds()
	return !t.Before(from) && t.Before(to)
}

// Repository runs the team aggregate over tasks assigned to memberIDs.
// It returns nil when no task matches.
type Repository interface {
	AggregateReport(ctx context.Context, memberIDs []int64, window Window) (*Row, error)
}

// FromRow shapes a raw aggregate row into a report.
func FromRow(row Row) Report {
	r := Report{
		TotalTeamTasks:           row.Total,
		ToDoTeamTasks:            row.ToDo,
		InProgressTeamTasks:      row.InProgress,
		DoneTeamTasks:            row.Done,
		TopMembersWithTasksCount: make([]MemberTaskCount, 0, TopMembersLimit),
	}
	if row.AvgHoursTaskToDone != nil {
		avg := roundHours(*row.AvgHoursTaskToDone)
		r.AvgHoursTaskToDone = &avg
	}
	for i, m := range row.TopMembers {
		if i == TopMembersLimit {
			break
		}
		r.TopMembersWithTasksCount = append(r.TopMembersWithTasksCount, m)
	}
	return r
}

func roundHours(h float64) float64 {
	return math.Round(h*1e5) / 1e5
}
