package report

import (
	domain "github.com/example/task-tracker/domain/report"
	"github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/pkg/apperr"
)

// ReportRequest selects a team and an inclusive range of days.
type ReportRequest struct {
	TeamID    *int64     `json:"teamId"`
	StartDate *task.Date `json:"startDate"`
	EndDate   *task.Date `json:"endDate"`
}

// ReportResponse carries a report or the reason it could not be built.
type ReportResponse struct {
	Report  *domain.Report `json:"report,omitempty"`
	Failure *apperr.Error  `json:"failure,omitempty"`
}
