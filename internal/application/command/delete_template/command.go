package delete_template

// DeleteTemplateCommand moves a template to the trash.
type DeleteTemplateCommand struct {
	FolderName string
}

// Name returns the name of the command
func (c DeleteTemplateCommand) Name() string {
	return "DeleteTemplate"
}
