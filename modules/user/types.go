package user

import "github.com/example/task-tracker/pkg/apperr"

// Role is the role a member holds in the identity service.
type Role string

const (
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// UserInfo is what the task service needs to know about a member.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsManager reports whether the user may reassign tasks.
func (u UserInfo) IsManager() bool {
	return u.Role == RoleManager
}

// ResolveUsersRequest asks for a batch of users by id.
type ResolveUsersRequest struct {
	IDs []int64 `json:"ids"`
}

// ResolveUsersResponse holds the users that exist. Unknown ids are absent.
type ResolveUsersResponse struct {
	Users   []UserInfo    `json:"users"`
	Failure *apperr.Error `json:"failure,omitempty"`
}

// ByID indexes users by id.
func ByID(users []UserInfo) map[int64]UserInfo {
	index := make(map[int64]UserInfo, len(users))
	for _, u := range users {
		index[u.ID] = u
	}
	return index
}
