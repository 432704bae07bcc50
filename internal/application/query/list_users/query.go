package list_users

// ListUsersQuery lists every user in creation order.
type ListUsersQuery struct{}

// Name returns the name of the query
func (q ListUsersQuery) Name() string {
	return "ListUsers"
}
