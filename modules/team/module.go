// Package team is the team gateway: it resolves the members of a team
// through the external team service.
package team

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/example/task-tracker/pkg/apperr"
	"github.com/example/task-tracker/pkg/remote"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// ServiceMembersOf is the request-reply service name.
const ServiceMembersOf = "members-of"

// Roster reads team membership from the team service.
type Roster interface {
	MembersOf(ctx context.Context, teamID int64) ([]Member, error)
}

// HTTPRoster reads members from GET /api/v1/member/by-team/{teamId}.
type HTTPRoster struct {
	client *remote.Client
}

// NewHTTPRoster creates a roster backed by the team service.
func NewHTTPRoster(client *remote.Client) *HTTPRoster {
	return &HTTPRoster{client: client}
}

// MembersOf returns the members of teamID.
func (r *HTTPRoster) MembersOf(ctx context.Context, teamID int64) ([]Member, error) {
	var members []Member
	path := "/api/v1/member/by-team/" + strconv.FormatInt(teamID, 10)
	if err := r.client.GetJSON(ctx, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// TeamModule exposes the team service to other modules.
type TeamModule struct {
	roster   Roster
	endpoint string
	logger   types.Logger
}

var (
	_ mono.Module                = (*TeamModule)(nil)
	_ mono.ServiceProviderModule = (*TeamModule)(nil)
	_ mono.HealthCheckableModule = (*TeamModule)(nil)
	_ Roster                     = (*HTTPRoster)(nil)
)

// NewModule creates a new TeamModule.
func NewModule(roster Roster, endpoint string, logger types.Logger) *TeamModule {
	return &TeamModule{roster: roster, endpoint: endpoint, logger: logger}
}

func (m *TeamModule) Name() string {
	return "team"
}

func (m *TeamModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceMembersOf,
		json.Unmarshal,
		json.Marshal,
		m.membersOf,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceMembersOf, err)
	}

	m.logger.Info("Registered services", "module", "team", "services", ServiceMembersOf)
	return nil
}

func (m *TeamModule) membersOf(ctx context.Context, req MembersOfRequest, _ *mono.Msg) (MembersOfResponse, error) {
	members, err := m.roster.MembersOf(ctx, req.TeamID)
	if err != nil {
		m.logger.Error("Team service lookup failed", "team_id", req.TeamID, "error", err)
		return MembersOfResponse{
			Failure: apperr.Dependency(err, "team service unavailable"),
		}, nil
	}
	if members == nil {
		members = []Member{}
	}
	return MembersOfResponse{Members: members}, nil
}

func (m *TeamModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.roster != nil,
		Message: "operational",
		Details: map[string]any{
			"endpoint": m.endpoint,
		},
	}
}

func (m *TeamModule) Start(_ context.Context) error {
	if m.roster == nil {
		return fmt.Errorf("team roster not configured")
	}
	m.logger.Info("Module started", "module", "team", "endpoint", m.endpoint)
	return nil
}

func (m *TeamModule) Stop(_ context.Context) error {
	m.logger.Info("Module stopped", "module", "team")
	return nil
}
