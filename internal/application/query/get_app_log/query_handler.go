package get_app_log

import (
	"context"
	"io"
	"os"
)

type LogOpener interface {
	OpenLog(ctx context.Context, folderName string) (*os.File, error)
}

// GetAppLogQueryHandler handles the GetAppLogQuery
type GetAppLogQueryHandler struct {
	apps LogOpener
}

// Handle returns the open log file. The caller closes it.
func (h *GetAppLogQueryHandler) Handle(ctx context.Context, query GetAppLogQuery) (io.ReadCloser, error) {
	f, err := h.apps.OpenLog(ctx, query.FolderName)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewGetAppLogQueryHandler creates a new GetAppLogQueryHandler
func NewGetAppLogQueryHandler(apps LogOpener) *GetAppLogQueryHandler {
	return &GetAppLogQueryHandler{apps: apps}
}
