package save_secrets

// SaveSecretsCommand replaces an application's .env file. The change takes
// effect on the next redeploy.
type SaveSecretsCommand struct {
	FolderName string
	Text       string
}

// Name returns the name of the command
func (c SaveSecretsCommand) Name() string {
	return "SaveSecrets"
}
