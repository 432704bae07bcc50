package delete_user

import "context"

type UserDeleter interface {
	Delete(ctx context.Context, id string) error
}

// DeleteUserHandler handles the DeleteUserCommand
type DeleteUserHandler struct {
	users    UserDeleter
	onChange func()
}

// Handle executes the DeleteUserCommand
func (h *DeleteUserHandler) Handle(ctx context.Context, cmd DeleteUserCommand) error {
	if err := h.users.Delete(ctx, cmd.ID); err != nil {
		return err
	}
	if h.onChange != nil {
		h.onChange()
	}
	return nil
}

// NewDeleteUserHandler creates a new DeleteUserHandler
func NewDeleteUserHandler(users UserDeleter, onChange func()) *DeleteUserHandler {
	return &DeleteUserHandler{users: users, onChange: onChange}
}
