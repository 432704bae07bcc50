package get_app

import (
	"context"

	"apphost/internal/domain/model"
)

type AppReader interface {
	GetApp(ctx context.Context, folderName string) (*model.AppView, error)
}

// GetAppQueryHandler handles the GetAppQuery
type GetAppQueryHandler struct {
	apps AppReader
}

// Handle executes the GetAppQuery and returns the result
func (h *GetAppQueryHandler) Handle(ctx context.Context, query GetAppQuery) (*model.AppView, error) {
	return h.apps.GetApp(ctx, query.FolderName)
}

// NewGetAppQueryHandler creates a new GetAppQueryHandler
func NewGetAppQueryHandler(apps AppReader) *GetAppQueryHandler {
	return &GetAppQueryHandler{apps: apps}
}
