package create_user

import "apphost/internal/domain/model"

// CreateUserCommand creates a user. ID is chosen by the caller so the new
// user can be looked up afterwards; it is generated when empty.
type CreateUserCommand struct {
	ID             string
	Username       string
	Email          string
	Password       string
	HashedPassword string
	Role           model.Role
	Apps           []string
}

// Name returns the name of the command
func (c CreateUserCommand) Name() string {
	return "CreateUser"
}
