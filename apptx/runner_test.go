package apptx

import (
	"context"
	"errors"
	"testing"

	"github.com/parkodev/backoffice_backend/utils"
)

func TestRunCommitsInOrder(t *testing.T) {
	r := NewRunner()
	var order []int

	err := r.Run(context.Background(), func(r *Runner) error {
		for i := 1; i <= 3; i++ {
			i := i
			if err := r.AddOperation(
				func(ctx context.Context) error {
					order = append(order, i)
					return nil
				},
				func(ctx context.Context) error { return nil },
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.State() != StateCommitted {
		t.Fatalf("state = %s, want %s", r.State(), StateCommitted)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("execution order = %v", order)
	}
}

func TestRunRollsBackExecutedInReverse(t *testing.T) {
	r := NewRunner()
	boom := errors.New("step 3 failed")
	var undone []int
	undoFor := func(i int) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			undone = append(undone, i)
			return nil
		}
	}

	err := r.Run(context.Background(), func(r *Runner) error {
		r.AddOperation(func(ctx context.Context) error { return nil }, undoFor(1))
		r.AddOperation(func(ctx context.Context) error { return nil }, undoFor(2))
		r.AddOperation(func(ctx context.Context) error { return boom }, undoFor(3))
		r.AddOperation(func(ctx context.Context) error { return nil }, undoFor(4))
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want original error", err)
	}
	if r.State() != StateRolledBack {
		t.Fatalf("state = %s, want %s", r.State(), StateRolledBack)
	}
	// only ops 1 and 2 executed; their undos run newest-first, op 3's never runs
	if len(undone) != 2 || undone[0] != 2 || undone[1] != 1 {
		t.Fatalf("undone = %v, want [2 1]", undone)
	}
}

func TestRunSwallowsUndoFailures(t *testing.T) {
	r := NewRunner()
	boom := errors.New("do failed")
	undo1Ran := false

	err := r.Run(context.Background(), func(r *Runner) error {
		r.AddOperation(
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error {
				undo1Ran = true
				return nil
			},
		)
		r.AddOperation(
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error { return errors.New("undo failed") },
		)
		r.AddOperation(func(ctx context.Context) error { return boom }, nil)
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want original do error, not the undo error", err)
	}
	if !undo1Ran {
		t.Fatal("rollback stopped at a failing undo instead of continuing")
	}
}

func TestRunBodyErrorExecutesNothing(t *testing.T) {
	r := NewRunner()
	boom := errors.New("validation failed")
	executed := false

	err := r.Run(context.Background(), func(r *Runner) error {
		r.AddOperation(
			func(ctx context.Context) error {
				executed = true
				return nil
			},
			nil,
		)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want body error", err)
	}
	if executed {
		t.Fatal("operation executed even though body failed")
	}
}

func TestAddOperationAfterCollectingRejected(t *testing.T) {
	r := NewRunner()
	var late error

	err := r.Run(context.Background(), func(r *Runner) error {
		return r.AddOperation(
			func(ctx context.Context) error {
				late = r.AddOperation(
					func(ctx context.Context) error { return nil },
					nil,
				)
				return nil
			},
			nil,
		)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if utils.KindOf(late) != utils.ErrorKindConflict {
		t.Fatalf("late AddOperation error kind = %v, want conflict", utils.KindOf(late))
	}
}

func TestRunnerNotReusable(t *testing.T) {
	r := NewRunner()
	if err := r.Run(context.Background(), func(r *Runner) error { return nil }); err != nil {
		t.Fatalf("first run: %v", err)
	}
	err := r.Run(context.Background(), func(r *Runner) error { return nil })
	if utils.KindOf(err) != utils.ErrorKindConflict {
		t.Fatalf("second run error kind = %v, want conflict", utils.KindOf(err))
	}
}
