package recreate_ecosystems

// RecreateEcosystemsCommand rewrites supervisor descriptors. An empty
// FolderName recreates every application and starts it.
type RecreateEcosystemsCommand struct {
	FolderName string
}

// Name returns the name of the command
func (c RecreateEcosystemsCommand) Name() string {
	return "RecreateEcosystems"
}
