package app

import "apphost/pkg/log"

// undoStack collects compensating actions for a multi-step operation. Each
// completed step pushes its undo; on failure they run in reverse order.
type undoStack struct {
	subject string
	steps   []undoStep
}

type undoStep struct {
	name string
	fn   func() error
}

func (u *undoStack) push(name string, fn func() error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

// unwind runs every undo action. Failures are logged so the remaining
// actions still run.
func (u *undoStack) unwind() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		if err := step.fn(); err != nil {
			log.Error("Rollback step failed", "subject", u.subject, "step", step.name, "error", err)
			continue
		}
		log.Debug("Rolled back", "subject", u.subject, "step", step.name)
	}
	u.steps = nil
}

// release forgets the undo actions once the operation has succeeded.
func (u *undoStack) release() {
	u.steps = nil
}
