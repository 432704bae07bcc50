package remove_ssh_key

// RemoveSSHKeyCommand deletes one key from a user.
type RemoveSSHKeyCommand struct {
	UserID string
	KeyID  string
}

// Name returns the name of the command
func (c RemoveSSHKeyCommand) Name() string {
	return "RemoveSSHKey"
}
