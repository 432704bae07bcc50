package list_apps

import "apphost/internal/domain/model"

// ListAppsQuery lists the applications Viewer may access.
type ListAppsQuery struct {
	Viewer *model.User
}

// Name returns the name of the query
func (q ListAppsQuery) Name() string {
	return "ListApps"
}
