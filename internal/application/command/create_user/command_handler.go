package create_user

import (
	"context"

	"apphost/internal/domain/model"
	userservice "apphost/internal/domain/service/user"
)

type UserCreator interface {
	Create(ctx context.Context, in userservice.NewUser) (*model.User, error)
}

// CreateUserHandler handles the CreateUserCommand
type CreateUserHandler struct {
	users    UserCreator
	onChange func()
}

// Handle executes the CreateUserCommand
func (h *CreateUserHandler) Handle(ctx context.Context, cmd CreateUserCommand) error {
	_, err := h.users.Create(ctx, userservice.NewUser{
		ID:             cmd.ID,
		Username:       cmd.Username,
		Email:          cmd.Email,
		Password:       cmd.Password,
		HashedPassword: cmd.HashedPassword,
		Role:           cmd.Role,
		Apps:           cmd.Apps,
	})
	if err != nil {
		return err
	}
	if h.onChange != nil {
		h.onChange()
	}
	return nil
}

// NewCreateUserHandler creates a new CreateUserHandler
func NewCreateUserHandler(users UserCreator, onChange func()) *CreateUserHandler {
	return &CreateUserHandler{users: users, onChange: onChange}
}
