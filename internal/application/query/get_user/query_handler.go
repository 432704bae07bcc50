package get_user

import (
	"context"

	"apphost/internal/domain/model"
)

type UserReader interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// GetUserQueryHandler handles the GetUserQuery
type GetUserQueryHandler struct {
	users UserReader
}

// Handle executes the GetUserQuery and returns the user without its
// password hash.
func (h *GetUserQueryHandler) Handle(ctx context.Context, query GetUserQuery) (*model.User, error) {
	u, err := h.users.Get(ctx, query.ID)
	if err != nil {
		return nil, err
	}
	public := u.Public()
	return &public, nil
}

// NewGetUserQueryHandler creates a new GetUserQueryHandler
func NewGetUserQueryHandler(users UserReader) *GetUserQueryHandler {
	return &GetUserQueryHandler{users: users}
}
