package delete_app

import (
	"context"

	"apphost/internal/domain/model"
	"apphost/pkg/log"
)

type AppDeleter interface {
	Delete(ctx context.Context, folderName string) error
}

// DeleteAppHandler handles the DeleteAppCommand
type DeleteAppHandler struct {
	apps AppDeleter
}

// Handle executes the DeleteAppCommand
func (h *DeleteAppHandler) Handle(ctx context.Context, cmd DeleteAppCommand) error {
	log.Debug("Processing delete app request", "folder_name", cmd.FolderName)

	if cmd.FolderName == "" {
		return model.NewValidationError("folderName", "Folder name is required")
	}
	return h.apps.Delete(ctx, cmd.FolderName)
}

// NewDeleteAppHandler creates a new DeleteAppHandler
func NewDeleteAppHandler(apps AppDeleter) *DeleteAppHandler {
	return &DeleteAppHandler{apps: apps}
}
