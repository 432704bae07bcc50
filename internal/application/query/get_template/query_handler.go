package get_template

import (
	"context"

	"apphost/internal/domain/model"
)

type TemplateReader interface {
	GetTemplate(ctx context.Context, folderName string) (*model.AppTemplate, error)
}

// GetTemplateQueryHandler handles the GetTemplateQuery
type GetTemplateQueryHandler struct {
	templates TemplateReader
}

// Handle executes the GetTemplateQuery and returns the result
func (h *GetTemplateQueryHandler) Handle(ctx context.Context, query GetTemplateQuery) (*model.AppTemplate, error) {
	return h.templates.GetTemplate(ctx, query.FolderName)
}

// NewGetTemplateQueryHandler creates a new GetTemplateQueryHandler
func NewGetTemplateQueryHandler(templates TemplateReader) *GetTemplateQueryHandler {
	return &GetTemplateQueryHandler{templates: templates}
}
