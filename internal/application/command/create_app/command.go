package create_app

import "apphost/internal/domain/model"

// CreateAppCommand creates an application from a template. Owner, when a
// dev, is granted the new application.
type CreateAppCommand struct {
	FolderName string
	Template   string
	Owner      *model.User
}

// Name returns the name of the command
func (c CreateAppCommand) Name() string {
	return "CreateApp"
}
