package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound is returned when the import file cannot be opened.
	ErrSourceNotFound = errors.New("source not found")

	// ErrEmptyFieldSelection is returned when a tabular export selects no fields.
	ErrEmptyFieldSelection = errors.New("no export fields selected")

	// ErrCancelled is returned when an operation stops because its context was
	// cancelled. The underlying context error is wrapped alongside it.
	ErrCancelled = errors.New("operation cancelled")

	// ErrOperationInProgress is returned when another operation holds the slot.
	ErrOperationInProgress = errors.New("another operation is already in progress")

	// ErrOperationNotFound is returned for unknown or expired operation ids.
	ErrOperationNotFound = errors.New("operation not found")
)

// BulkWriteError reports a failed batch write during import. Batches before
// BatchIndex were written and are not undone.
type BulkWriteError struct {
	BatchIndex int // 0-based index of the failed batch
	Err        error
}

func (e *BulkWriteError) Error() string {
	return fmt.Sprintf("bulk write failed at batch %d: %v", e.BatchIndex, e.Err)
}

func (e *BulkWriteError) Unwrap() error { return e.Err }

// DestinationWriteError reports a failure creating or writing an export file.
type DestinationWriteError struct {
	Path string
	Err  error
}

func (e *DestinationWriteError) Error() string {
	return fmt.Sprintf("destination write failed for %s: %v", e.Path, e.Err)
}

func (e *DestinationWriteError) Unwrap() error { return e.Err }

// cancelled wraps a context error so that both errors.Is(err, ErrCancelled)
// and errors.Is(err, context.Canceled) hold.
func cancelled(ctxErr error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
}
