package save_secrets

import "context"

type SecretsWriter interface {
	SaveSecrets(ctx context.Context, folderName, text string) error
}

// SaveSecretsHandler handles the SaveSecretsCommand
type SaveSecretsHandler struct {
	apps SecretsWriter
}

// Handle executes the SaveSecretsCommand
func (h *SaveSecretsHandler) Handle(ctx context.Context, cmd SaveSecretsCommand) error {
	return h.apps.SaveSecrets(ctx, cmd.FolderName, cmd.Text)
}

// NewSaveSecretsHandler creates a new SaveSecretsHandler
func NewSaveSecretsHandler(apps SecretsWriter) *SaveSecretsHandler {
	return &SaveSecretsHandler{apps: apps}
}
