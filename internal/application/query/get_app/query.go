package get_app

// GetAppQuery looks up one application by folder name.
type GetAppQuery struct {
	FolderName string
}

// Name returns the name of the query
func (q GetAppQuery) Name() string {
	return "GetApp"
}
