package create_template

import (
	"context"

	"apphost/internal/domain/model"
)

type TemplateCreator interface {
	CreateTemplate(ctx context.Context, folderName string) (*model.AppTemplate, error)
}

// CreateTemplateHandler handles the CreateTemplateCommand
type CreateTemplateHandler struct {
	templates TemplateCreator
}

// Handle executes the CreateTemplateCommand
func (h *CreateTemplateHandler) Handle(ctx context.Context, cmd CreateTemplateCommand) error {
	_, err := h.templates.CreateTemplate(ctx, cmd.FolderName)
	return err
}

// NewCreateTemplateHandler creates a new CreateTemplateHandler
func NewCreateTemplateHandler(templates TemplateCreator) *CreateTemplateHandler {
	return &CreateTemplateHandler{templates: templates}
}
