package report

import (
	"context"
	"encoding/json"

	domain "github.com/example/task-tracker/domain/report"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ReportPort builds team reports for other modules.
type ReportPort interface {
	TeamReport(ctx context.Context, req *ReportRequest) (domain.Report, error)
}

type reportAdapter struct {
	container mono.ServiceContainer
}

// NewReportAdapter creates a new adapter for report services.
func NewReportAdapter(container mono.ServiceContainer) ReportPort {
	if container == nil {
		panic("report adapter requires non-nil ServiceContainer")
	}
	return &reportAdapter{container: container}
}

// TeamReport calls the team-report service.
func (a *reportAdapter) TeamReport(ctx context.Context, req *ReportRequest) (domain.Report, error) {
	var resp ReportResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceTeamReport,
		json.Marshal,
		json.Unmarshal,
		req,
		&resp,
	); err != nil {
		return domain.Report{}, apperr.Dependency(err, "team-report service call failed")
	}
	if resp.Failure != nil {
		return domain.Report{}, resp.Failure
	}
	if resp.Report == nil {
		return domain.Report{}, apperr.Dependency(nil, "empty report response")
	}
	return *resp.Report, nil
}
