package update_user

import (
	"context"

	"apphost/internal/domain/model"
)

type UserUpdater interface {
	Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
}

// UpdateUserHandler handles the UpdateUserCommand
type UpdateUserHandler struct {
	users    UserUpdater
	onChange func()
}

// Handle executes the UpdateUserCommand
func (h *UpdateUserHandler) Handle(ctx context.Context, cmd UpdateUserCommand) error {
	if _, err := h.users.Update(ctx, cmd.ID, cmd.Update); err != nil {
		return err
	}
	if h.onChange != nil {
		h.onChange()
	}
	return nil
}

// NewUpdateUserHandler creates a new UpdateUserHandler
func NewUpdateUserHandler(users UserUpdater, onChange func()) *UpdateUserHandler {
	return &UpdateUserHandler{users: users, onChange: onChange}
}
