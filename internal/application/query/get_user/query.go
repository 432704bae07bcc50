package get_user

// GetUserQuery looks up one user by ID.
type GetUserQuery struct {
	ID string
}

// Name returns the name of the query
func (q GetUserQuery) Name() string {
	return "GetUser"
}
