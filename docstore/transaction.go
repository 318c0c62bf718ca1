package docstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/jacentio/arbor/rpc"
)

// Transaction is a unit of atomic work against the backend. Reads go to the
// backend immediately, pinned to the transaction's snapshot; writes stage
// locally and travel with the commit. [RunTransaction] drives the
// begin/commit/rollback lifecycle and retries contended attempts.
//
// A Transaction is not safe for concurrent use.
type Transaction struct {
	c           *Client
	id          []byte
	readOnly    bool
	maxAttempts int
	newBackOff  func() backoff.BackOff
	writes      []*rpc.Write
}

// Transaction returns an idle transaction handle.
func (c *Client) Transaction(opts ...TransactionOption) *Transaction {
	s := collectTxSettings(opts)
	return &Transaction{
		c:           c,
		readOnly:    s.readOnly,
		maxAttempts: s.maxAttempts,
		newBackOff:  s.newBackOff,
	}
}

// InProgress reports whether the transaction has begun and not yet committed
// or rolled back.
func (t *Transaction) InProgress() bool {
	return t.id != nil
}

// ID returns a copy of the backend-issued transaction ID, nil while the
// transaction is not in progress.
func (t *Transaction) ID() []byte {
	return bytes.Clone(t.id)
}

// ReadOnly reports whether the transaction rejects writes.
func (t *Transaction) ReadOnly() bool {
	return t.readOnly
}

// beginOptions builds the wire options for begin. A retry token asks the
// backend to prioritize this attempt over the writers that beat the previous
// one; read-only transactions have no previous attempt to name.
func (t *Transaction) beginOptions(retryID []byte) (*rpc.TransactionOptions, error) {
	switch {
	case retryID != nil:
		if t.readOnly {
			return nil, ErrReadOnlyRetry
		}
		return &rpc.TransactionOptions{
			ReadWrite: &rpc.ReadWriteOptions{RetryTransaction: retryID},
		}, nil
	case t.readOnly:
		return &rpc.TransactionOptions{ReadOnly: &rpc.ReadOnlyOptions{}}, nil
	default:
		return nil, nil
	}
}

// begin starts the transaction on the backend and records its ID.
func (t *Transaction) begin(ctx context.Context, retryID []byte) error {
	if t.InProgress() {
		return fmt.Errorf("%w (id %x)", ErrTransactionInProgress, t.id)
	}
	opts, err := t.beginOptions(retryID)
	if err != nil {
		return err
	}
	resp, err := t.c.transport.BeginTransaction(ctx, &rpc.BeginTransactionRequest{
		Database: t.c.config.Database,
		Options:  opts,
	}, rpc.CallOptions{})
	if err != nil {
		return err
	}
	t.id = resp.Transaction
	return nil
}

// rollback abandons the transaction on the backend. Local state is cleared
// whether or not the backend call succeeds; its error, if any, is returned
// after the clean-up.
func (t *Transaction) rollback(ctx context.Context) error {
	if !t.InProgress() {
		return ErrTransactionNotInProgress
	}
	err := t.c.transport.Rollback(ctx, &rpc.RollbackRequest{
		Database:    t.c.config.Database,
		Transaction: t.id,
	}, rpc.CallOptions{})
	t.cleanUp()
	return err
}

// commit sends the staged writes and ends the transaction, returning one
// result per write in staging order. On failure the transaction stays in
// progress so it can be rolled back.
func (t *Transaction) commit(ctx context.Context) ([]*rpc.WriteResult, error) {
	if !t.InProgress() {
		return nil, ErrTransactionNotInProgress
	}
	results, err := t.c.commitWrites(ctx, t.writes, t.id)
	if err != nil {
		return nil, err
	}
	t.cleanUp()
	return results, nil
}

// cleanUp drops the staged writes and the transaction ID.
func (t *Transaction) cleanUp() {
	t.writes = nil
	t.id = nil
}

// stage validates and appends one write.
func (t *Transaction) stage(w *rpc.Write, err error) error {
	if err != nil {
		return err
	}
	if t.readOnly {
		return ErrReadOnlyTransaction
	}
	t.writes = append(t.writes, w)
	return nil
}

// Create stages a create of ref, failing the commit if it already exists.
func (t *Transaction) Create(ref *DocumentRef, data map[string]any) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	return t.stage(newCreateWrite(name, data), nil)
}

// Set stages an unconditional write of ref.
func (t *Transaction) Set(ref *DocumentRef, data map[string]any, opts ...SetOption) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	return t.stage(newSetWrite(name, data, opts), nil)
}

// Update stages a masked update of ref, failing the commit if it does not
// exist.
func (t *Transaction) Update(ref *DocumentRef, data map[string]any, preconds ...Precondition) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	return t.stage(newUpdateWrite(name, data, preconds))
}

// Delete stages a delete of ref.
func (t *Transaction) Delete(ref *DocumentRef, preconds ...Precondition) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	return t.stage(newDeleteWrite(name, preconds))
}

// guardRead rejects reads once writes are staged: staged writes are
// invisible to reads, so allowing the read would hand back state the
// transaction is about to overwrite.
func (t *Transaction) guardRead() error {
	if len(t.writes) > 0 {
		return ErrReadAfterWrite
	}
	return nil
}

// Get reads one document inside the transaction. While the transaction is
// not in progress the read runs standalone.
func (t *Transaction) Get(ctx context.Context, ref *DocumentRef, opts ...ReadOption) (*DocumentSnapshot, error) {
	if err := t.guardRead(); err != nil {
		return nil, err
	}
	return t.c.getDoc(ctx, ref, t.id, collectReadSettings(opts))
}

// GetAll reads documents by reference inside the transaction. While the
// transaction is not in progress the read runs standalone.
func (t *Transaction) GetAll(ctx context.Context, refs []*DocumentRef, opts ...ReadOption) ([]*DocumentSnapshot, error) {
	if err := t.guardRead(); err != nil {
		return nil, err
	}
	return t.c.getAll(ctx, refs, t.id, collectReadSettings(opts))
}

// Documents streams col's documents inside the transaction.
func (t *Transaction) Documents(ctx context.Context, col *CollectionRef, opts ...ReadOption) *DocumentIterator {
	if err := t.guardRead(); err != nil {
		return &DocumentIterator{err: err}
	}
	return t.c.queryDocuments(ctx, col, t.id, collectReadSettings(opts))
}

// DocumentRefs lists col's document references. Listings are not pinned to
// the transaction's snapshot, but the read-after-write guard still applies.
func (t *Transaction) DocumentRefs(ctx context.Context, col *CollectionRef, opts ...ReadOption) *DocumentRefIterator {
	if err := t.guardRead(); err != nil {
		return &DocumentRefIterator{err: err}
	}
	return t.c.listDocumentRefs(ctx, col, collectReadSettings(opts))
}

// Collections lists the sub-collections of doc; nil doc lists the top-level
// collections. Listings are not pinned to the transaction's snapshot, but
// the read-after-write guard still applies.
func (t *Transaction) Collections(ctx context.Context, doc *DocumentRef, opts ...ReadOption) *CollectionIterator {
	if err := t.guardRead(); err != nil {
		return &CollectionIterator{err: err}
	}
	return t.c.listCollections(ctx, doc, collectReadSettings(opts))
}
