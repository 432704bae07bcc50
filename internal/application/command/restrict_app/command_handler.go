package restrict_app

import (
	"context"
	"fmt"

	"apphost/internal/domain/model"
)

type AppLookup interface {
	Exists(folderName string) bool
}

type GrantStore interface {
	RestrictAppToUsers(ctx context.Context, folderName string, userIDs []string) error
}

// RestrictAppHandler handles the RestrictAppCommand
type RestrictAppHandler struct {
	apps     AppLookup
	grants   GrantStore
	onChange func()
}

// Handle executes the RestrictAppCommand
func (h *RestrictAppHandler) Handle(ctx context.Context, cmd RestrictAppCommand) error {
	if !h.apps.Exists(cmd.FolderName) {
		return fmt.Errorf("app %s: %w", cmd.FolderName, model.ErrNotFound)
	}
	if err := h.grants.RestrictAppToUsers(ctx, cmd.FolderName, cmd.UserIDs); err != nil {
		return err
	}
	if h.onChange != nil {
		h.onChange()
	}
	return nil
}

// NewRestrictAppHandler creates a new RestrictAppHandler. onChange runs after
// the grants were written.
func NewRestrictAppHandler(apps AppLookup, grants GrantStore, onChange func()) *RestrictAppHandler {
	return &RestrictAppHandler{apps: apps, grants: grants, onChange: onChange}
}
