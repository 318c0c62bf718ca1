package docstore

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrTransactionInProgress is returned when beginning a transaction that has already begun.
	ErrTransactionInProgress = errors.New("arbor: transaction already in progress")

	// ErrTransactionNotInProgress is returned when committing or rolling back a transaction that hasn't begun.
	ErrTransactionNotInProgress = errors.New("arbor: transaction not in progress")

	// ErrReadOnlyTransaction is returned when staging a write on a read-only transaction.
	ErrReadOnlyTransaction = errors.New("arbor: cannot write in a read-only transaction")

	// ErrReadAfterWrite is returned when reading through a transaction that has writes staged.
	ErrReadAfterWrite = errors.New("arbor: transaction read after staged writes")

	// ErrReadOnlyRetry is returned when a read-only transaction is begun with a retry token.
	ErrReadOnlyRetry = errors.New("arbor: read-only transaction cannot carry a retry token")

	// ErrInvalidPath is returned when a reference path is malformed.
	ErrInvalidPath = errors.New("arbor: invalid resource path")

	// ErrBulkWriterClosed is returned when enqueuing writes on a closed bulk writer.
	ErrBulkWriterClosed = errors.New("arbor: bulk writer is closed")
)

// IsContention reports whether err is the backend aborting work because a
// conflicting writer got there first. [RunTransaction] retries contended
// read-write attempts.
func IsContention(err error) bool {
	return status.Code(err) == codes.Aborted
}

// MaxAttemptsError reports a transaction that stayed contended until its
// attempt budget ran out. It wraps the last contention error.
type MaxAttemptsError struct {
	// Attempts is the number of attempts made.
	Attempts int

	err error
}

func (e *MaxAttemptsError) Error() string {
	return fmt.Sprintf("arbor: transaction failed to commit in %d attempts: %v", e.Attempts, e.err)
}

func (e *MaxAttemptsError) Unwrap() error {
	return e.err
}
