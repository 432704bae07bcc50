package delete_app

// DeleteAppCommand stops an application and moves its files to the trash.
type DeleteAppCommand struct {
	FolderName string
}

// Name returns the name of the command
func (c DeleteAppCommand) Name() string {
	return "DeleteApp"
}
