package delete_user

// DeleteUserCommand removes a user together with their keys and grants.
type DeleteUserCommand struct {
	ID string
}

// Name returns the name of the command
func (c DeleteUserCommand) Name() string {
	return "DeleteUser"
}
