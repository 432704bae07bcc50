package list_users

import (
	"context"

	"apphost/internal/domain/model"
)

type UserLister interface {
	List(ctx context.Context) ([]model.User, error)
}

// ListUsersQueryHandler handles the ListUsersQuery
type ListUsersQueryHandler struct {
	users UserLister
}

// Handle executes the ListUsersQuery and returns users without password hashes
func (h *ListUsersQueryHandler) Handle(ctx context.Context, query ListUsersQuery) ([]model.User, error) {
	users, err := h.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// NewListUsersQueryHandler creates a new ListUsersQueryHandler
func NewListUsersQueryHandler(users UserLister) *ListUsersQueryHandler {
	return &ListUsersQueryHandler{users: users}
}
