package get_template

// GetTemplateQuery looks up one template by folder name.
type GetTemplateQuery struct {
	FolderName string
}

// Name returns the name of the query
func (q GetTemplateQuery) Name() string {
	return "GetTemplate"
}
