package redeploy_app

import (
	"context"
	"io"
)

type Redeployer interface {
	Redeploy(ctx context.Context, folderName string, out io.Writer) error
}

// RedeployAppHandler handles the RedeployAppCommand
type RedeployAppHandler struct {
	apps Redeployer
}

// Handle executes the RedeployAppCommand
func (h *RedeployAppHandler) Handle(ctx context.Context, cmd RedeployAppCommand) error {
	out := cmd.Output
	if out == nil {
		out = io.Discard
	}
	return h.apps.Redeploy(ctx, cmd.FolderName, out)
}

// NewRedeployAppHandler creates a new RedeployAppHandler
func NewRedeployAppHandler(apps Redeployer) *RedeployAppHandler {
	return &RedeployAppHandler{apps: apps}
}
