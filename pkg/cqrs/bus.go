// Package cqrs implements the Command Query Responsibility Segregation pattern.
package cqrs

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// NameProvider is an interface for both Command and Query types
// that provides a way to get the name of the message.
type NameProvider interface {
	// Name returns the name of the message (command or query).
	Name() string
}

// ActionProvider defines an interface for managing handlers and controlling their lifecycle.
type ActionProvider interface {
	// Register registers a handler for the message type its Handle method accepts.
	Register(handler interface{}) error

	// Shutdown initiates a graceful shutdown of the bus.
	// New messages will be rejected, but existing messages will be allowed to complete.
	Shutdown()

	// WaitForCompletion waits for all active messages to complete.
	// This should be called after Shutdown to ensure all messages have finished processing.
	WaitForCompletion()
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Bus is a generic implementation that can be used by both command and query buses.
type Bus struct {
	handlers       map[string]reflect.Value
	mutex          sync.RWMutex
	isShuttingDown bool
	activeMessages sync.WaitGroup
	busType        string // "command" or "query"
	numOut         int
}

// NewBus creates a new Bus with the specified type. numOut is the number of
// values Handle must return.
func NewBus(busType string, numOut int) *Bus {
	return &Bus{
		handlers: make(map[string]reflect.Value),
		busType:  busType,
		numOut:   numOut,
	}
}

// Register registers a handler. The handler must be a pointer with a method
// Handle(context.Context, M) where M implements NameProvider.
func (b *Bus) Register(handler interface{}) error {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil || handlerType.Kind() != reflect.Ptr {
		return fmt.Errorf("handler must be a pointer to a struct, got %T", handler)
	}

	handleMethod, exists := handlerType.MethodByName("Handle")
	if !exists {
		return fmt.Errorf("handler %T does not implement Handle method", handler)
	}

	methodType := handleMethod.Type
	if methodType.NumIn() != 3 { // receiver + context + message
		return fmt.Errorf("Handle method of %T must take a context and the %s", handler, b.busType)
	}
	if !methodType.In(1).Implements(contextType) {
		return fmt.Errorf("Handle method of %T must take a context.Context first", handler)
	}
	if methodType.NumOut() != b.numOut {
		return fmt.Errorf("Handle method of %T must return %d values", handler, b.numOut)
	}

	messageType := methodType.In(2)
	message, ok := reflect.New(messageType).Elem().Interface().(NameProvider)
	if !ok {
		return fmt.Errorf("parameter type %s is not a %s", messageType, b.busType)
	}
	messageName := message.Name()

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, exists := b.handlers[messageName]; exists {
		return fmt.Errorf("handler for %s %s already registered", b.busType, messageName)
	}
	b.handlers[messageName] = reflect.ValueOf(handler).MethodByName("Handle")
	return nil
}

// Shutdown initiates a graceful shutdown of the bus.
func (b *Bus) Shutdown() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.isShuttingDown = true
}

// WaitForCompletion waits for all active messages to complete.
func (b *Bus) WaitForCompletion() {
	b.activeMessages.Wait()
}

// IsShuttingDown returns true if the bus is shutting down.
func (b *Bus) IsShuttingDown() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.isShuttingDown
}

// call invokes the handler registered for msg and returns its raw results.
func (b *Bus) call(ctx context.Context, msg NameProvider, shuttingDown error) ([]reflect.Value, error) {
	b.mutex.RLock()
	if b.isShuttingDown {
		b.mutex.RUnlock()
		return nil, shuttingDown
	}
	handle, exists := b.handlers[msg.Name()]
	if exists {
		b.activeMessages.Add(1)
	}
	b.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for %s %s", b.busType, msg.Name())
	}
	defer b.activeMessages.Done()

	if ctx == nil {
		ctx = context.Background()
	}
	return handle.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(msg)}), nil
}

// shutdownOnDone shuts the bus down when ctx is cancelled.
func (b *Bus) shutdownOnDone(ctx context.Context) {
	if ctx == nil {
		return
	}
	go func() {
		<-ctx.Done()
		b.Shutdown()
	}()
}
