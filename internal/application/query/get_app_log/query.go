package get_app_log

// GetAppLogQuery opens the combined process log of an application.
type GetAppLogQuery struct {
	FolderName string
}

// Name returns the name of the query
func (q GetAppLogQuery) Name() string {
	return "GetAppLog"
}
