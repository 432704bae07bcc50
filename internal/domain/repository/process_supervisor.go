package repository

import (
	"context"

	"apphost/internal/domain/model"
)

// ProcessSupervisor is the contract with the external process manager that
// keeps application processes alive.
type ProcessSupervisor interface {
	// Start launches the process described by the descriptor file.
	// Starting an already running process is not an error.
	Start(ctx context.Context, descriptorPath string) error

	// Reload restarts the named process in place without dropping connections.
	Reload(ctx context.Context, name string) error

	// Stop stops the named process but keeps it registered.
	Stop(ctx context.Context, name string) error

	// Delete stops the named process and forgets it.
	Delete(ctx context.Context, name string) error

	// Describe returns the status of the named process.
	// An unknown process reports model.StatusStopped.
	Describe(ctx context.Context, name string) (model.ProcessStatus, error)
}
