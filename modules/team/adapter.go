package team

import (
	"context"
	"encoding/json"

	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TeamPort resolves team membership for other modules.
type TeamPort interface {
	MembersOf(ctx context.Context, teamID int64) ([]Member, error)
}

type teamAdapter struct {
	container mono.ServiceContainer
}

// NewTeamAdapter creates a new adapter for team services.
func NewTeamAdapter(container mono.ServiceContainer) TeamPort {
	if container == nil {
		panic("team adapter requires non-nil ServiceContainer")
	}
	return &teamAdapter{container: container}
}

// MembersOf calls the members-of service.
func (a *teamAdapter) MembersOf(ctx context.Context, teamID int64) ([]Member, error) {
	req := MembersOfRequest{TeamID: teamID}
	var resp MembersOfResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMembersOf,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Dependency(err, "members-of service call failed")
	}
	if resp.Failure != nil {
		return nil, resp.Failure
	}
	return resp.Members, nil
}
