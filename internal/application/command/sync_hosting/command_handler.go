package sync_hosting

import (
	"context"

	"apphost/pkg/syncqueue"
)

type Enqueuer interface {
	Enqueue() *syncqueue.Ticket
}

// SyncHostingHandler handles the SyncHostingCommand
type SyncHostingHandler struct {
	queue Enqueuer
}

// Handle executes the SyncHostingCommand
func (h *SyncHostingHandler) Handle(ctx context.Context, cmd SyncHostingCommand) error {
	ticket := h.queue.Enqueue()
	if !cmd.Wait {
		return nil
	}
	return ticket.Wait(ctx)
}

// NewSyncHostingHandler creates a new SyncHostingHandler
func NewSyncHostingHandler(queue Enqueuer) *SyncHostingHandler {
	return &SyncHostingHandler{queue: queue}
}
