package update_user

import "apphost/internal/domain/model"

// UpdateUserCommand changes the non-nil fields of Update on user ID.
type UpdateUserCommand struct {
	ID     string
	Update model.UserUpdate
}

// Name returns the name of the command
func (c UpdateUserCommand) Name() string {
	return "UpdateUser"
}
