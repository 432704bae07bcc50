// Package syncqueue serializes runs of a single idempotent job.
//
// One worker executes the job. At most one further run can be pending
// behind the running one; requests that arrive while a run is pending attach
// to it instead of queueing another. Because the job derives everything from
// current state, the pending run covers every request that attached to it.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"apphost/pkg/log"
)

// ErrClosed is reported to tickets that can no longer run.
var ErrClosed = errors.New("sync queue closed")

// Job is the work performed by each run.
type Job func(ctx context.Context) error

// Ticket is handed out by Enqueue and resolves when its run finishes.
type Ticket struct {
	done chan struct{}
	err  error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (t *Ticket) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed when the run this ticket is attached to completes.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the run completes or ctx is done.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.err
	}
}

// Queue is a single-worker queue with one pending slot.
type Queue struct {
	job  Job
	slot chan *Ticket

	mu      sync.Mutex
	pending *Ticket
	closed  bool

	// OnCoalesce, when set, is called for every request that attached to an
	// already pending run.
	OnCoalesce func()
}

func New(job Job) *Queue {
	return &Queue{
		job:  job,
		slot: make(chan *Ticket, 1),
	}
}

// Enqueue requests a run and never blocks.
func (q *Queue) Enqueue() *Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		t := newTicket()
		t.finish(ErrClosed)
		return t
	}

	if q.pending != nil {
		if q.OnCoalesce != nil {
			q.OnCoalesce()
		}
		return q.pending
	}

	t := newTicket()
	q.pending = t
	// pending was nil so the slot is empty.
	q.slot <- t
	return t
}

// Run executes queued runs until ctx is done. It must be called once.
func (q *Queue) Run(ctx context.Context) {
	defer q.close()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.slot:
			q.mu.Lock()
			q.pending = nil
			q.mu.Unlock()

			t.finish(q.runOnce(ctx))
		}
	}
}

func (q *Queue) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync job panicked: %v", r)
			log.Error("Sync job panicked", "panic", r)
		}
	}()
	return q.job(ctx)
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	select {
	case t := <-q.slot:
		q.pending = nil
		t.finish(ErrClosed)
	default:
	}
}
