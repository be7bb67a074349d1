package task

import (
	"strings"

	"github.com/example/task-tracker/pkg/apperr"
)

// Patch is a sparse set of field changes. Absent fields keep their current value.
type Patch struct {
	Title       Optional[string]
	Description Optional[string]
	DeadLine    Optional[Date]
	Assignee    Optional[int64]
	Status      Optional[Status]
}

// Merge applies patch over existing and returns the merged task.
// Identity, author and timestamps are never touched.
func Merge(existing Task, patch Patch) (Task, error) {
	merged := existing

	if title, ok := patch.Title.Get(); ok {
		if strings.TrimSpace(title) == "" {
			return Task{}, apperr.Validation("task title must not be blank")
		}
		merged.Title = title
	}

	if description, ok := patch.Description.Get(); ok {
		if strings.TrimSpace(description) == "" {
			return Task{}, apperr.Validation("task description must not be blank")
		}
		merged.Description = description
	}

	if deadLine, ok := patch.DeadLine.Get(); ok {
		merged.DeadLine = deadLine
	}

	if assignee, ok := patch.Assignee.Get(); ok {
		merged.Assignee = assignee
	}

	if status, ok := patch.Status.Get(); ok && status != existing.Status {
		if err := ValidateTransition(existing.Status, status); err != nil {
			return Task{}, err
		}
		merged.Status = status
	}

	return merged, nil
}
