package events

import (
	"time"

	"github.com/example/task-tracker/domain/task"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskSnapshot is the state of a task right after a mutation.
type TaskSnapshot struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      task.Status `json:"status"`
	DeadLine    task.Date   `json:"deadLine"`
	Assignee    int64       `json:"assignee"`
}

// TaskHistoryEvent is the audit record emitted after every committed create or update.
type TaskHistoryEvent struct {
	EventID   string       `json:"eventId"`
	TaskID    int64        `json:"taskId"`
	Data      TaskSnapshot `json:"data"`
	CreatedBy int64        `json:"createdBy"`
	Moment    time.Time    `json:"moment"`
}

// TaskHistoryV1 is the typed event definition for task audit records.
// Subject: events.task.v1.task-history
var TaskHistoryV1 = helper.EventDefinition[TaskHistoryEvent](
	"task", "TaskHistory", "v1",
)

// NewTaskHistoryEvent snapshots t as changed by editorID.
func NewTaskHistoryEvent(eventID string, t task.Task, editorID int64) TaskHistoryEvent {
	return TaskHistoryEvent{
		EventID: eventID,
		TaskID:  t.ID,
		Data: TaskSnapshot{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			DeadLine:    t.DeadLine,
			Assignee:    t.Assignee,
		},
		CreatedBy: editorID,
		Moment:    t.UpdatedAt,
	}
}
