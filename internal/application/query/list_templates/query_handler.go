package list_templates

import (
	"context"

	"apphost/internal/domain/model"
)

type TemplateLister interface {
	ListTemplates(ctx context.Context) ([]model.AppTemplate, error)
}

// ListTemplatesQueryHandler handles the ListTemplatesQuery
type ListTemplatesQueryHandler struct {
	templates TemplateLister
}

// Handle executes the ListTemplatesQuery and returns the result
func (h *ListTemplatesQueryHandler) Handle(ctx context.Context, query ListTemplatesQuery) ([]model.AppTemplate, error) {
	return h.templates.ListTemplates(ctx)
}

// NewListTemplatesQueryHandler creates a new ListTemplatesQueryHandler
func NewListTemplatesQueryHandler(templates TemplateLister) *ListTemplatesQueryHandler {
	return &ListTemplatesQueryHandler{templates: templates}
}
