// Package task contains the task entity, its status state machine and the
// pure merge logic used by partial updates.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
// The numeric value is the code stored in the status lookup table.
type Status int16

const (
	StatusToDo       Status = 1
	StatusInProgress Status = 2
	StatusDone       Status = 3
	StatusDeleted    Status = 4
)

var statusNames = map[Status]string{
	StatusToDo:       "TO_DO",
	StatusInProgress: "IN_PROGRESS",
	StatusDone:       "DONE",
	StatusDeleted:    "DELETED",
}

// Statuses returns every status in code order.
func Statuses() []Status {
	return []Status{StatusToDo, StatusInProgress, StatusDone, StatusDeleted}
}

// String returns the status name.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int16(s))
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Code returns the storage code of s.
func (s Status) Code() int16 {
	return int16(s)
}

// ParseStatus resolves a status by name.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown task status %q", name)
}

// StatusFromCode resolves a status by storage code.
func StatusFromCode(code int16) (Status, error) {
	s := Status(code)
	if !s.Valid() {
		return 0, fmt.Errorf("unknown task status code %d", code)
	}
	return s, nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown task status code %d", int16(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("task status must be a string: %w", err)
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Task is a unit of work owned by an author and worked by an assignee.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	DeadLine    Date      `json:"deadLine"`
	Author      int64     `json:"author"`
	Assignee    int64     `json:"assignee"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsActive reports whether the task still needs work.
func (t Task) IsActive() bool {
	return t.Status != StatusDone && t.Status != StatusDeleted
}

// Filter narrows FindByFilter results. Nil fields are unconstrained.
type Filter struct {
	Status   *Status
	Assignee *int64
}
