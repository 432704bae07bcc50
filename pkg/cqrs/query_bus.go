package cqrs

import (
	"context"
	"errors"
	"fmt"
)

// ErrQueryBusShuttingDown is returned when a query is dispatched to a bus that is shutting down.
var ErrQueryBusShuttingDown = errors.New("query bus is shutting down")

// DefaultQueryBus is a simple implementation of the QueryBus interface.
type DefaultQueryBus struct {
	*Bus
}

// NewQueryBus creates a new DefaultQueryBus. Cancelling ctx initiates a
// graceful shutdown.
func NewQueryBus(ctx context.Context) *DefaultQueryBus {
	b := &DefaultQueryBus{Bus: NewBus("query", 2)}
	b.shutdownOnDone(ctx)
	return b
}

// Dispatch sends a query to its appropriate handler and returns the result.
func (b *DefaultQueryBus) Dispatch(ctx context.Context, query Query) (interface{}, error) {
	results, err := b.call(ctx, query, ErrQueryBusShuttingDown)
	if err != nil {
		return nil, err
	}
	if !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// Ask dispatches query and asserts the result type.
func Ask[R any](ctx context.Context, bus QueryBus, query Query) (R, error) {
	var zero R
	raw, err := bus.Dispatch(ctx, query)
	if err != nil {
		return zero, err
	}
	result, ok := raw.(R)
	if !ok {
		return zero, fmt.Errorf("query %s returned %T, want %T", query.Name(), raw, zero)
	}
	return result, nil
}
