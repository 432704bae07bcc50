package recreate_ecosystems

import (
	"context"

	"apphost/pkg/log"
)

type EcosystemWriter interface {
	RecreateEcosystem(ctx context.Context, folderName string) (int, error)
	RecreateAll(ctx context.Context) error
}

// RecreateEcosystemsHandler handles the RecreateEcosystemsCommand
type RecreateEcosystemsHandler struct {
	apps EcosystemWriter
}

// Handle executes the RecreateEcosystemsCommand
func (h *RecreateEcosystemsHandler) Handle(ctx context.Context, cmd RecreateEcosystemsCommand) error {
	if cmd.FolderName == "" {
		return h.apps.RecreateAll(ctx)
	}
	port, err := h.apps.RecreateEcosystem(ctx, cmd.FolderName)
	if err != nil {
		return err
	}
	log.Info("Ecosystem recreated", "folder_name", cmd.FolderName, "port", port)
	return nil
}

// NewRecreateEcosystemsHandler creates a new RecreateEcosystemsHandler
func NewRecreateEcosystemsHandler(apps EcosystemWriter) *RecreateEcosystemsHandler {
	return &RecreateEcosystemsHandler{apps: apps}
}
