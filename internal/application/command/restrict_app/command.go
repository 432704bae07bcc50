package restrict_app

// RestrictAppCommand grants an application to exactly the listed users.
type RestrictAppCommand struct {
	FolderName string
	UserIDs    []string
}

// Name returns the name of the command
func (c RestrictAppCommand) Name() string {
	return "RestrictApp"
}
