package sync_hosting

// SyncHostingCommand requests a git hosting reconciliation. With Wait set
// the command returns once a run that started after the request finished.
type SyncHostingCommand struct {
	Wait bool
}

// Name returns the name of the command
func (c SyncHostingCommand) Name() string {
	return "SyncHosting"
}
