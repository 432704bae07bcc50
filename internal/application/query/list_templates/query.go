package list_templates

// ListTemplatesQuery lists every template with its latest commit.
type ListTemplatesQuery struct{}

// Name returns the name of the query
func (q ListTemplatesQuery) Name() string {
	return "ListTemplates"
}
