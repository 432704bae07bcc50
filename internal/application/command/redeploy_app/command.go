package redeploy_app

import "io"

// RedeployAppCommand installs, builds and reloads an application. Tool
// output is streamed to Output when set.
type RedeployAppCommand struct {
	FolderName string
	Output     io.Writer
}

// Name returns the name of the command
func (c RedeployAppCommand) Name() string {
	return "RedeployApp"
}
