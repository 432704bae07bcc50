package delete_template

import "context"

type TemplateDeleter interface {
	DeleteTemplate(ctx context.Context, folderName string) error
}

// DeleteTemplateHandler handles the DeleteTemplateCommand
type DeleteTemplateHandler struct {
	templates TemplateDeleter
}

// Handle executes the DeleteTemplateCommand
func (h *DeleteTemplateHandler) Handle(ctx context.Context, cmd DeleteTemplateCommand) error {
	return h.templates.DeleteTemplate(ctx, cmd.FolderName)
}

// NewDeleteTemplateHandler creates a new DeleteTemplateHandler
func NewDeleteTemplateHandler(templates TemplateDeleter) *DeleteTemplateHandler {
	return &DeleteTemplateHandler{templates: templates}
}
