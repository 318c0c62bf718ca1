// Package docstore provides a client for a hierarchical document database
// with transactional reads and writes.
//
// Arbor models data as documents grouped into collections, where each
// document may own further sub-collections to any depth. The client speaks
// to the backend through the [github.com/jacentio/arbor/rpc.Transport]
// interface, so the same operations run against a live gRPC service or an
// in-process fake.
//
// # Key Features
//
//   - Collection and document handles built from slash-separated paths
//   - Standalone writes with create/exists/update-time preconditions
//   - Atomic multi-write batches via [WriteBatch]
//   - Serializable transactions with automatic retry on contention
//   - High-throughput standalone writes via [BulkWriter]
//   - Recursive deletion of whole document trees
//
// # References
//
// Handles are cheap values that name locations without touching the
// backend:
//
//	users := client.Collection("users")
//	alice := users.Doc("alice")
//	posts := alice.Collection("posts")
//
// Invalid paths yield nil handles, and operations on them report
// [ErrInvalidPath].
//
// # Transactions
//
// [Client.RunTransaction] runs a function against a consistent snapshot and
// commits its staged writes atomically, retrying the whole function when the
// backend reports contention:
//
//	err := client.RunTransaction(ctx, func(ctx context.Context, t *docstore.Transaction) error {
//	    snap, err := t.Get(ctx, alice)
//	    if err != nil {
//	        return err
//	    }
//	    balance, _ := snap.Get("balance")
//	    return t.Update(alice, map[string]any{"balance": balance.(float64) - 10})
//	})
//
// All reads must happen before the first staged write; transactions opened
// with [ReadOnly] reject writes altogether and never retry.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrTransactionInProgress] - transaction handle is already active
//   - [ErrTransactionNotInProgress] - operation requires an active transaction
//   - [ErrReadOnlyTransaction] - write staged on a read-only transaction
//   - [ErrReadAfterWrite] - read attempted after staging a write
//   - [ErrReadOnlyRetry] - read-only transaction asked to resume a retry
//   - [ErrInvalidPath] - malformed collection or document path
//   - [ErrBulkWriterClosed] - write enqueued on a closed bulk writer
//   - [MaxAttemptsError] - transaction retries exhausted
package docstore
