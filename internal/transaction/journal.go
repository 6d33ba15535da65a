// Package transaction provides the staging journal used while one plan
// action touches the filesystem: every placement registers an undo step, the
// whole set is discarded once the action commits, and a failure partway
// replays the steps in reverse so the action leaves no trace.
package transaction

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// UndoFunc reverses one staging step.
type UndoFunc func() error

type step struct {
	name string
	fn   UndoFunc
}

// Journal is a LIFO stack of undo steps for a single in-flight action.
type Journal struct {
	steps  []step
	mu     sync.Mutex
	logger *zerolog.Logger
}

// NewJournal creates an empty journal.
func NewJournal(logger *zerolog.Logger) *Journal {
	return &Journal{logger: logger}
}

// Record registers the undo step for a staging operation that just
// succeeded.
func (j *Journal) Record(name string, fn UndoFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = append(j.steps, step{name: name, fn: fn})
}

// Len reports how many undo steps are pending.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.steps)
}

// Revert replays every undo step in reverse order. All steps run even when
// some fail; the failures are collected.
func (j *Journal) Revert() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.steps) == 0 {
		return nil
	}

	if j.logger != nil {
		j.logger.Info().Int("steps", len(j.steps)).Msg("Reverting staged action...")
	}

	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		op := j.steps[i]
		if j.logger != nil {
			j.logger.Debug().Str("step", op.name).Msg("undoing")
		}

		if err := op.fn(); err != nil {
			errs = append(errs, fmt.Errorf("failed to undo '%s': %w", op.name, err))
			if j.logger != nil {
				j.logger.Error().Err(err).Str("step", op.name).Msg("undo failed")
			}
		}
	}

	j.steps = nil

	if len(errs) > 0 {
		return fmt.Errorf("revert completed with errors: %v", errs)
	}
	return nil
}

// Commit discards the undo steps, confirming the action.
func (j *Journal) Commit() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = nil
}
