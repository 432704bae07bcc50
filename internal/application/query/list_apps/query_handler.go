package list_apps

import (
	"context"

	"apphost/internal/domain/model"
)

type AppLister interface {
	ListApps(ctx context.Context, viewer *model.User) ([]model.AppView, error)
}

// ListAppsQueryHandler handles the ListAppsQuery
type ListAppsQueryHandler struct {
	apps AppLister
}

// Handle executes the ListAppsQuery and returns the result
func (h *ListAppsQueryHandler) Handle(ctx context.Context, query ListAppsQuery) ([]model.AppView, error) {
	return h.apps.ListApps(ctx, query.Viewer)
}

// NewListAppsQueryHandler creates a new ListAppsQueryHandler
func NewListAppsQueryHandler(apps AppLister) *ListAppsQueryHandler {
	return &ListAppsQueryHandler{apps: apps}
}
