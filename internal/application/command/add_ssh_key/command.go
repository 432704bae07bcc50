package add_ssh_key

// AddSSHKeyCommand stores a public key on a user.
type AddSSHKeyCommand struct {
	UserID    string
	KeyName   string
	PublicKey string
}

// Name returns the name of the command
func (c AddSSHKeyCommand) Name() string {
	return "AddSSHKey"
}
