package docstore

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jacentio/arbor/rpc"
)

// ReadOption tunes a single read or listing call.
type ReadOption func(*readSettings)

type readSettings struct {
	readTime time.Time
	pageSize int32
	explain  *rpc.ExplainOptions
	call     rpc.CallOptions
}

func collectReadSettings(opts []ReadOption) readSettings {
	var s readSettings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithReadTime reads the state at the given time instead of now. The time is
// normalized to UTC before it goes on the wire.
func WithReadTime(t time.Time) ReadOption {
	return func(s *readSettings) {
		s.readTime = t.UTC()
	}
}

// WithPageSize bounds the pages of listing calls. Non-positive values are
// ignored and let the backend choose.
func WithPageSize(n int32) ReadOption {
	return func(s *readSettings) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithExplainOptions asks the backend to profile the query. The metrics
// surface on the iterator once its stream is exhausted.
func WithExplainOptions(opts rpc.ExplainOptions) ReadOption {
	return func(s *readSettings) {
		s.explain = &opts
	}
}

// WithTimeout bounds the call at the transport instead of the transport's
// default deadline.
func WithTimeout(d time.Duration) ReadOption {
	return func(s *readSettings) {
		if d > 0 {
			s.call.Timeout = d
		}
	}
}

// WithRetryDisabled turns off transport-level retries for the call.
func WithRetryDisabled() ReadOption {
	return func(s *readSettings) {
		s.call.DisableRetry = true
	}
}

// TransactionOption configures a transaction handle.
type TransactionOption func(*txSettings)

type txSettings struct {
	maxAttempts int
	readOnly    bool
	newBackOff  func() backoff.BackOff
}

const defaultMaxAttempts = 5

func collectTxSettings(opts []TransactionOption) txSettings {
	s := txSettings{
		maxAttempts: defaultMaxAttempts,
		newBackOff:  defaultTxBackOff,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// defaultTxBackOff is the backend's documented retry policy for contended
// transactions: exponential from 1s, doubling, capped at 30s, jittered.
func defaultTxBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// MaxAttempts sets how many times [RunTransaction] will attempt the
// transaction before giving up. Values below 1 are ignored.
// Default: 5.
func MaxAttempts(n int) TransactionOption {
	return func(s *txSettings) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// ReadOnly makes the transaction a snapshot transaction: reads see one
// consistent state and writes are rejected with [ErrReadOnlyTransaction].
// Contended read-only attempts are not retried.
func ReadOnly() TransactionOption {
	return func(s *txSettings) {
		s.readOnly = true
	}
}

// WithRetryBackoff sets the sleep policy between transaction attempts. The
// function is invoked once per [RunTransaction] call.
func WithRetryBackoff(newBackOff func() backoff.BackOff) TransactionOption {
	return func(s *txSettings) {
		if newBackOff != nil {
			s.newBackOff = newBackOff
		}
	}
}

// RecursiveDeleteOption configures [Client.RecursiveDelete].
type RecursiveDeleteOption func(*recursiveDeleteSettings)

type recursiveDeleteSettings struct {
	bulkWriter *BulkWriter
}

// WithBulkWriter routes the deletes through an existing bulk writer instead
// of a fresh one. The writer is still closed when the delete finishes.
func WithBulkWriter(bw *BulkWriter) RecursiveDeleteOption {
	return func(s *recursiveDeleteSettings) {
		s.bulkWriter = bw
	}
}
