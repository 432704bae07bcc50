package cqrs

import "context"

// Command represents a command that changes the state of the system.
// Commands are named with verbs in imperative form (e.g., "CreateApp").
type Command interface {
	NameProvider
}

// CommandHandler defines the interface for handling commands.
type CommandHandler[C Command] interface {
	// Handle executes the command and returns an error if the command fails.
	Handle(ctx context.Context, cmd C) error
}

// CommandBus is responsible for dispatching commands to their handlers.
type CommandBus interface {
	ActionProvider

	// Dispatch sends a command to its appropriate handler.
	Dispatch(ctx context.Context, cmd Command) error
}
