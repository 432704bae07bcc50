package add_ssh_key

import (
	"context"

	"apphost/internal/domain/model"
)

type KeyAdder interface {
	AddSSHKey(ctx context.Context, userID, name, publicKey string) (*model.SSHKey, error)
}

// AddSSHKeyHandler handles the AddSSHKeyCommand
type AddSSHKeyHandler struct {
	users    KeyAdder
	onChange func()
}

// Handle executes the AddSSHKeyCommand
func (h *AddSSHKeyHandler) Handle(ctx context.Context, cmd AddSSHKeyCommand) error {
	if _, err := h.users.AddSSHKey(ctx, cmd.UserID, cmd.KeyName, cmd.PublicKey); err != nil {
		return err
	}
	if h.onChange != nil {
		h.onChange()
	}
	return nil
}

// NewAddSSHKeyHandler creates a new AddSSHKeyHandler
func NewAddSSHKeyHandler(users KeyAdder, onChange func()) *AddSSHKeyHandler {
	return &AddSSHKeyHandler{users: users, onChange: onChange}
}
