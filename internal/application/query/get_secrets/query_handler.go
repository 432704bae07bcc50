package get_secrets

import "context"

type SecretsReader interface {
	GetSecrets(ctx context.Context, folderName string) (string, error)
}

// GetSecretsQueryHandler handles the GetSecretsQuery
type GetSecretsQueryHandler struct {
	apps SecretsReader
}

// Handle executes the GetSecretsQuery and returns the result
func (h *GetSecretsQueryHandler) Handle(ctx context.Context, query GetSecretsQuery) (string, error) {
	return h.apps.GetSecrets(ctx, query.FolderName)
}

// NewGetSecretsQueryHandler creates a new GetSecretsQueryHandler
func NewGetSecretsQueryHandler(apps SecretsReader) *GetSecretsQueryHandler {
	return &GetSecretsQueryHandler{apps: apps}
}
