package create_template

// CreateTemplateCommand creates a template from the default template.
type CreateTemplateCommand struct {
	FolderName string
}

// Name returns the name of the command
func (c CreateTemplateCommand) Name() string {
	return "CreateTemplate"
}
