package get_secrets

// GetSecretsQuery returns the raw .env text of an application.
type GetSecretsQuery struct {
	FolderName string
}

// Name returns the name of the query
func (q GetSecretsQuery) Name() string {
	return "GetSecrets"
}
