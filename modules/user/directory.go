package user

import (
	"context"
	"net/url"
	"strconv"

	"github.com/example/task-tracker/pkg/remote"
)

// Directory looks users up in the identity service.
type Directory interface {
	FindByIDs(ctx context.Context, ids []int64) ([]UserInfo, error)
}

// HTTPDirectory reads users from GET /api/v1/user?ids=...
type HTTPDirectory struct {
	client *remote.Client
}

var _ Directory = (*HTTPDirectory)(nil)

// NewHTTPDirectory creates a directory backed by the identity service at client's base URL.
func NewHTTPDirectory(client *remote.Client) *HTTPDirectory {
	return &HTTPDirectory{client: client}
}

// FindByIDs returns the users that exist among ids.
func (d *HTTPDirectory) FindByIDs(ctx context.Context, ids []int64) ([]UserInfo, error) {
	query := url.Values{}
	for _, id := range ids {
		query.Add("ids", strconv.FormatInt(id, 10))
	}

	var users []UserInfo
	if err := d.client.GetJSON(ctx, "/api/v1/user", query, &users); err != nil {
		return nil, err
	}
	return users, nil
}
