// Package apptx runs multi-step mutations as ordered (do, undo) pairs with
// compensating rollback. It is the only write path for posting workflows:
// every balance save, ledger row and cost-layer write is enrolled so a
// failure part-way leaves no partial state behind.
package apptx

import (
	"context"

	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/utils"
)

type State string

const (
	StateCollecting State = "collecting"
	StateExecuting  State = "executing"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolledback"
)

type operation struct {
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// Runner collects operations during the body callback, then executes them in
// order. Not safe for concurrent use and not reentrant; one Runner per
// workflow invocation.
type Runner struct {
	state      State
	operations []operation
}

func NewRunner() *Runner {
	return &Runner{state: StateCollecting}
}

func (r *Runner) State() State {
	return r.state
}

// AddOperation enrolls a (do, undo) pair. Only valid while the body is still
// collecting; enrolling after execution started is a programming error and
// returns a conflict.
func (r *Runner) AddOperation(do func(ctx context.Context) error, undo func(ctx context.Context) error) error {
	if r.state != StateCollecting {
		return utils.ConflictError("cannot add operation in state %s", r.state)
	}
	r.operations = append(r.operations, operation{do: do, undo: undo})
	return nil
}

// Run invokes body to populate the operation list, then executes every do in
// enrollment order. When a do fails, the undos of the operations that already
// executed run in reverse order (the failing operation's undo does not run),
// undo failures are logged and swallowed, and the original error is returned
// unchanged.
func (r *Runner) Run(ctx context.Context, body func(r *Runner) error) error {
	if r.state != StateCollecting {
		return utils.ConflictError("runner already used in state %s", r.state)
	}

	if err := body(r); err != nil {
		r.state = StateRolledBack
		return err
	}

	r.state = StateExecuting
	for i, op := range r.operations {
		if op.do == nil {
			continue
		}
		if err := op.do(ctx); err != nil {
			r.rollback(ctx, i)
			return err
		}
	}
	r.state = StateCommitted
	return nil
}

// rollback undoes operations [0, failed) in reverse order.
func (r *Runner) rollback(ctx context.Context, failed int) {
	logger := config.GetLogger()
	for i := failed - 1; i >= 0; i-- {
		undo := r.operations[i].undo
		if undo == nil {
			continue
		}
		if err := undo(ctx); err != nil {
			config.LogRollbackWarning(logger, "apptx", "rollback", i, err)
		}
	}
	r.state = StateRolledBack
}
