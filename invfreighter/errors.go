package invfreighter

import (
	"fmt"
	"strings"

	"github.com/lightninglabs/zkinv/inventory"
)

// StepError is the failure of a single step of a batch.
type StepError struct {
	// Index is the logical position of the step within the batch.
	Index int

	// InventoryID is the inventory the step operates on.
	InventoryID inventory.ID

	// Op is the operation of the step.
	Op inventory.Operation

	// Err is the reason the step failed.
	Err error
}

// Error returns the error message.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%v on %v): %v", e.Index, e.Op,
		e.InventoryID, e.Err)
}

// Unwrap returns the reason the step failed.
func (e *StepError) Unwrap() error {
	return e.Err
}

// BatchError aggregates all step failures of a batch. Steps are sorted by
// index.
type BatchError struct {
	Steps []*StepError
}

// Error returns the error message.
func (e *BatchError) Error() string {
	if len(e.Steps) == 1 {
		return fmt.Sprintf("batch failed: %v", e.Steps[0])
	}

	msgs := make([]string, 0, len(e.Steps))
	for _, s := range e.Steps {
		msgs = append(msgs, s.Error())
	}

	return fmt.Sprintf("batch failed at %d steps: %s", len(e.Steps),
		strings.Join(msgs, "; "))
}

// Unwrap returns the failure of the lowest indexed step.
func (e *BatchError) Unwrap() error {
	if len(e.Steps) == 0 {
		return nil
	}

	return e.Steps[0]
}

// FailedIndexes returns the indexes of all failed steps.
func (e *BatchError) FailedIndexes() []int {
	idx := make([]int, 0, len(e.Steps))
	for _, s := range e.Steps {
		idx = append(idx, s.Index)
	}

	return idx
}
