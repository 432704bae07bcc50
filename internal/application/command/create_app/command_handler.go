package create_app

import (
	"context"

	"apphost/internal/domain/model"
	appservice "apphost/internal/domain/service/app"
	"apphost/pkg/log"
)

type AppCreator interface {
	Create(ctx context.Context, req appservice.CreateRequest) (*model.AppView, error)
}

// CreateAppHandler handles the CreateAppCommand
type CreateAppHandler struct {
	apps AppCreator
}

// Handle executes the CreateAppCommand
func (h *CreateAppHandler) Handle(ctx context.Context, cmd CreateAppCommand) error {
	log.Debug("Processing create app request", "folder_name", cmd.FolderName, "template", cmd.Template)

	_, err := h.apps.Create(ctx, appservice.CreateRequest{
		FolderName: cmd.FolderName,
		Template:   cmd.Template,
		Owner:      cmd.Owner,
	})
	return err
}

func NewCreateAppHandler(apps AppCreator) *CreateAppHandler {
	return &CreateAppHandler{apps: apps}
}
