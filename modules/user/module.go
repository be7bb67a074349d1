// Package user is the identity gateway: it resolves member existence and
// role through the external identity service.
package user

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// ServiceResolveUsers is the request-reply service name.
const ServiceResolveUsers = "resolve-users"

// UserModule exposes the identity service to other modules.
type UserModule struct {
	directory Directory
	endpoint  string
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*UserModule)(nil)
	_ mono.ServiceProviderModule = (*UserModule)(nil)
	_ mono.HealthCheckableModule = (*UserModule)(nil)
)

// NewModule creates a new UserModule. endpoint is only reported in health details.
func NewModule(directory Directory, endpoint string, logger types.Logger) *UserModule {
	return &UserModule{
		directory: directory,
		endpoint:  endpoint,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *UserModule) Name() string {
	return "user"
}

// RegisterServices registers request-reply services in the service container.
func (m *UserModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceResolveUsers,
		json.Unmarshal,
		json.Marshal,
		m.resolveUsers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceResolveUsers, err)
	}

	m.logger.Info("Registered services", "module", "user", "services", ServiceResolveUsers)
	return nil
}

// resolveUsers handles the resolve-users service request.
func (m *UserModule) resolveUsers(ctx context.Context, req ResolveUsersRequest, _ *mono.Msg) (ResolveUsersResponse, error) {
	ids := slices.Clone(req.IDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return ResolveUsersResponse{Users: []UserInfo{}}, nil
	}

	users, err := m.directory.FindByIDs(ctx, ids)
	if err != nil {
		m.logger.Error("Identity service lookup failed", "ids", ids, "error", err)
		return ResolveUsersResponse{
			Failure: apperr.Dependency(err, "identity service unavailable"),
		}, nil
	}

	return ResolveUsersResponse{Users: users}, nil
}

// Health reports the configured identity service.
func (m *UserModule) Health(_ context.Context) mono.HealthStatus {
	if m.directory == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "identity directory not configured",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"endpoint": m.endpoint,
		},
	}
}

// Start validates the module configuration.
func (m *UserModule) Start(_ context.Context) error {
	if m.directory == nil {
		return fmt.Errorf("identity directory not configured")
	}
	m.logger.Info("Module started", "module", "user", "endpoint", m.endpoint)
	return nil
}

// Stop shuts down the module.
func (m *UserModule) Stop(_ context.Context) error {
	m.logger.Info("Module stopped", "module", "user")
	return nil
}
