package cqrs

import "context"

// Query represents a request for information that does not change the state of the system.
// Queries are named after what they return (e.g., "GetApp").
type Query interface {
	NameProvider
}

// QueryHandler defines the interface for handling queries.
type QueryHandler[Q Query, R any] interface {
	// Handle executes the query and returns the result or an error.
	Handle(ctx context.Context, query Q) (R, error)
}

// QueryBus is responsible for dispatching queries to their handlers.
type QueryBus interface {
	ActionProvider

	// Dispatch sends a query to its appropriate handler and returns the result.
	Dispatch(ctx context.Context, query Query) (interface{}, error)
}
