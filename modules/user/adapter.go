package user

import (
	"context"
	"encoding/json"

	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// UserPort resolves members for other modules.
type UserPort interface {
	// ResolveUsers looks up ids in one call. Ids missing from the result do not exist.
	ResolveUsers(ctx context.Context, ids []int64) ([]UserInfo, error)
}

// userAdapter wraps ServiceContainer for type-safe cross-module communication.
type userAdapter struct {
	container mono.ServiceContainer
}

// NewUserAdapter creates a new adapter for user services.
func NewUserAdapter(container mono.ServiceContainer) UserPort {
	if container == nil {
		panic("user adapter requires non-nil ServiceContainer")
	}
	return &userAdapter{container: container}
}

// ResolveUsers calls the resolve-users service.
func (a *userAdapter) ResolveUsers(ctx context.Context, ids []int64) ([]UserInfo, error) {
	req := ResolveUsersRequest{IDs: ids}
	var resp ResolveUsersResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceResolveUsers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Dependency(err, "resolve-users service call failed")
	}
	if resp.Failure != nil {
		return nil, resp.Failure
	}
	return resp.Users, nil
}
