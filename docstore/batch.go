package docstore

import (
	"context"

	"github.com/jacentio/arbor/rpc"
)

// WriteBatch stages writes locally and commits them in one atomic request.
// The zero batch is not usable; get one from [Client.Batch]. A WriteBatch is
// not safe for concurrent use.
type WriteBatch struct {
	c      *Client
	writes []*rpc.Write
}

// Batch returns an empty write batch.
func (c *Client) Batch() *WriteBatch {
	return &WriteBatch{c: c}
}

// Create stages a create of ref, failing the commit if it already exists.
func (b *WriteBatch) Create(ref *DocumentRef, data map[string]any) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, newCreateWrite(name, data))
	return nil
}

// Set stages an unconditional write of ref.
func (b *WriteBatch) Set(ref *DocumentRef, data map[string]any, opts ...SetOption) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, newSetWrite(name, data, opts))
	return nil
}

// Update stages a masked update of ref, failing the commit if it does not
// exist.
func (b *WriteBatch) Update(ref *DocumentRef, data map[string]any, preconds ...Precondition) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	w, err := newUpdateWrite(name, data, preconds)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, w)
	return nil
}

// Delete stages a delete of ref.
func (b *WriteBatch) Delete(ref *DocumentRef, preconds ...Precondition) error {
	name, err := documentName(ref)
	if err != nil {
		return err
	}
	w, err := newDeleteWrite(name, preconds)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, w)
	return nil
}

// Len returns the number of staged writes.
func (b *WriteBatch) Len() int {
	return len(b.writes)
}

// Commit applies the staged writes atomically. Results arrive in staging
// order. A successful commit resets the batch; a failed one keeps the writes
// staged so the commit can be retried. Committing an empty batch is a no-op.
func (b *WriteBatch) Commit(ctx context.Context) ([]*rpc.WriteResult, error) {
	if len(b.writes) == 0 {
		return nil, nil
	}
	results, err := b.c.commitWrites(ctx, b.writes, nil)
	if err != nil {
		return nil, err
	}
	b.writes = nil
	return results, nil
}
