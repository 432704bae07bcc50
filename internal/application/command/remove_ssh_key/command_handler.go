package remove_ssh_key

import "context"

type KeyRemover interface {
	RemoveSSHKey(ctx context.Context, userID, keyID string) error
}

// RemoveSSHKeyHandler handles the RemoveSSHKeyCommand
type RemoveSSHKeyHandler struct {
	users    KeyRemover
	onChange func()
}

// Handle executes the RemoveSSHKeyCommand
func (h *RemoveSSHKeyHandler) Handle(ctx context.Context, cmd RemoveSSHKeyCommand) error {
	if err := h.users.RemoveSSHKey(ctx, cmd.UserID, cmd.KeyID); err != nil {
		return err
	}
	if h.onChange != nil {
		h.onChange()
	}
	return nil
}

// NewRemoveSSHKeyHandler creates a new RemoveSSHKeyHandler
func NewRemoveSSHKeyHandler(users KeyRemover, onChange func()) *RemoveSSHKeyHandler {
	return &RemoveSSHKeyHandler{users: users, onChange: onChange}
}
