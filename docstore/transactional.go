package docstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TransactionFunc is the unit of work run inside a transaction. It may be
// invoked several times when attempts are contended, so it must be safe to
// repeat; results should flow out through variables it closes over, read
// only after [RunTransaction] returns nil.
type TransactionFunc func(ctx context.Context, t *Transaction) error

// RunTransaction drives t through up to its configured attempts: begin, run
// f, commit. A contended read-write attempt is rolled back and retried after
// a backoff, re-presenting the first attempt's ID so the backend can
// prioritize the retry. Any other failure rolls back and returns
// immediately. When every attempt stays contended the result is a
// [*MaxAttemptsError] wrapping the last contention.
//
// The handle must be idle; a handle that is already in progress is refused
// with [ErrTransactionInProgress].
func RunTransaction(ctx context.Context, t *Transaction, f TransactionFunc) error {
	if t.InProgress() {
		return ErrTransactionInProgress
	}

	bo := t.newBackOff()
	bo.Reset()

	var retryID []byte
	var lastErr error

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			d := bo.NextBackOff()
			if d == backoff.Stop {
				return &MaxAttemptsError{Attempts: attempt - 1, err: lastErr}
			}
			if err := sleep(ctx, d); err != nil {
				return err
			}
		}

		if err := t.begin(ctx, retryID); err != nil {
			return err
		}
		if retryID == nil {
			retryID = t.ID()
		}

		err := f(ctx, t)
		if err == nil {
			if _, err = t.commit(ctx); err == nil {
				return nil
			}
		}

		// The attempt is dead either way; hand its locks back before
		// deciding what to do with the error.
		if rbErr := t.rollback(ctx); rbErr != nil {
			t.c.logger.Warn("transaction rollback failed",
				"attempt", attempt, "error", rbErr)
		}

		if t.readOnly || !IsContention(err) {
			return err
		}
		lastErr = err
		t.c.logger.Debug("transaction contended, will retry",
			"attempt", attempt, "max_attempts", t.maxAttempts)
	}

	return &MaxAttemptsError{Attempts: t.maxAttempts, err: lastErr}
}

// RunTransaction runs f in a fresh transaction configured by opts. See the
// package-level [RunTransaction].
func (c *Client) RunTransaction(ctx context.Context, f TransactionFunc, opts ...TransactionOption) error {
	return RunTransaction(ctx, c.Transaction(opts...), f)
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
