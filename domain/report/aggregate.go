package report

import (
	"sort"
	"time"

	"github.com/example/task-tracker/domain/task"
)

// Entry is the slice of a task the aggregation reads.
type Entry struct {
	Assignee  int64
	Status    task.Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Aggregate computes the report row over entries whose UpdatedAt falls in window.
// Members are ranked by count descending, then by assignee id ascending.
// It returns nil when nothing matches.
func Aggregate(entries []Entry, window Window) *Row {
	var (
		row       Row
		doneHours float64
		perMember = make(map[int64]int64)
	)

	for _, e := range entries {
		if !window.Contains(e.UpdatedAt) {
			continue
		}
		row.Total++
		perMember[e.Assignee]++

		switch e.Status {
		case task.StatusToDo:
			row.ToDo++
		case task.StatusInProgress:
			row.InProgress++
		case task.StatusDone:
			row.Done++
			doneHours += e.UpdatedAt.Sub(e.CreatedAt).Hours()
		}
	}

	if row.Total == 0 {
		return nil
	}

	if row.Done > 0 {
		avg := doneHours / float64(row.Done)
		row.AvgHoursTaskToDone = &avg
	}

	ranking := make([]MemberTaskCount, 0, len(perMember))
	for id, n := range perMember {
		ranking = append(ranking, MemberTaskCount{AssigneeID: id, TasksCount: n})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].TasksCount != ranking[j].TasksCount {
			return ranking[i].TasksCount > ranking[j].TasksCount
		}
		return ranking[i].AssigneeID < ranking[j].AssigneeID
	})
	if len(ranking) > TopMembersLimit {
		ranking = ranking[:TopMembersLimit]
	}
	row.TopMembers = ranking

	return &row
}
