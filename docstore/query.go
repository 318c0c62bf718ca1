package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jacentio/arbor/internal/resourcepath"
	"github.com/jacentio/arbor/rpc"
)

// Documents streams the collection's documents. The caller owns the returned
// iterator and should drain it or call [DocumentIterator.Stop].
func (r *CollectionRef) Documents(ctx context.Context, opts ...ReadOption) *DocumentIterator {
	if r == nil {
		return &DocumentIterator{err: fmt.Errorf("%w: nil collection reference", ErrInvalidPath)}
	}
	return r.c.queryDocuments(ctx, r, nil, collectReadSettings(opts))
}

// Get fetches every document in the collection in one call. It is shorthand
// for draining [CollectionRef.Documents].
func (r *CollectionRef) Get(ctx context.Context, opts ...ReadOption) ([]*DocumentSnapshot, error) {
	return r.Documents(ctx, opts...).GetAll()
}

// DocumentRefs lists the collection's document references without fetching
// their contents. Placeholder documents that only anchor sub-collections are
// included.
func (r *CollectionRef) DocumentRefs(ctx context.Context, opts ...ReadOption) *DocumentRefIterator {
	if r == nil {
		return &DocumentRefIterator{err: fmt.Errorf("%w: nil collection reference", ErrInvalidPath)}
	}
	return r.c.listDocumentRefs(ctx, r, collectReadSettings(opts))
}

// queryDocuments opens a document stream for the collection, inside a
// transaction when txn is non-nil.
func (c *Client) queryDocuments(ctx context.Context, col *CollectionRef, txn []byte, s readSettings) *DocumentIterator {
	if col == nil {
		return &DocumentIterator{err: fmt.Errorf("%w: nil collection reference", ErrInvalidPath)}
	}
	parent := resourcepath.Name(c.config.Database)
	if p := col.Parent(); p != nil {
		parent = p.Name()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &DocumentIterator{
		c:      c,
		ctx:    ctx,
		cancel: cancel,
		open: func(ctx context.Context) (rpc.RunQueryStream, error) {
			return c.transport.RunQuery(ctx, &rpc.RunQueryRequest{
				Parent: parent,
				Query: &rpc.Query{
					CollectionID: col.ID(),
				},
				Transaction:    txn,
				ReadTime:       s.readTime,
				ExplainOptions: s.explain,
			}, s.call)
		},
	}
}

// DocumentIterator yields the snapshots of a document stream. It is not safe
// for concurrent use.
type DocumentIterator struct {
	c      *Client
	ctx    context.Context
	cancel context.CancelFunc
	open   func(context.Context) (rpc.RunQueryStream, error)
	stream rpc.RunQueryStream

	metrics *rpc.ExplainMetrics
	done    bool
	err     error
}

// Next returns the next snapshot. It returns [io.EOF] when the stream is
// exhausted; any other error is sticky.
func (it *DocumentIterator) Next() (*DocumentSnapshot, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.done {
		return nil, it.finish(io.EOF)
	}
	if it.stream == nil {
		stream, err := it.open(it.ctx)
		if err != nil {
			return nil, it.finish(err)
		}
		it.stream = stream
	}
	for {
		resp, err := it.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.EOF
			}
			return nil, it.finish(err)
		}
		if resp.ExplainMetrics != nil {
			it.metrics = resp.ExplainMetrics
		}
		if resp.Document == nil {
			// Progress-only response. Done without a document means no
			// further results follow.
			if resp.Done {
				return nil, it.finish(io.EOF)
			}
			continue
		}
		ref, err := it.c.refFromName(resp.Document.Name)
		if err != nil {
			return nil, it.finish(err)
		}
		if resp.Done {
			it.done = true
		}
		return foundSnapshot(ref, resp.Document, resp.ReadTime), nil
	}
}

// GetAll drains the iterator and returns every remaining snapshot.
func (it *DocumentIterator) GetAll() ([]*DocumentSnapshot, error) {
	defer it.Stop()
	var snaps []*DocumentSnapshot
	for {
		snap, err := it.Next()
		if errors.Is(err, io.EOF) {
			return snaps, nil
		}
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
}

// Stop releases the iterator's resources. Next returns [io.EOF] after Stop.
// Stop may be called multiple times.
func (it *DocumentIterator) Stop() {
	it.finish(io.EOF)
}

// ExplainMetrics returns the query plan the backend reported. It is only
// available once the iterator is exhausted, and only when the query was run
// with [WithExplainOptions].
func (it *DocumentIterator) ExplainMetrics() (*rpc.ExplainMetrics, error) {
	if !errors.Is(it.err, io.EOF) {
		return nil, errors.New("arbor: explain metrics are available once the iterator is exhausted")
	}
	if it.metrics == nil {
		return nil, errors.New("arbor: the query did not request explain metrics")
	}
	return it.metrics, nil
}

// finish records the iterator's terminal state and releases the stream.
func (it *DocumentIterator) finish(err error) error {
	if it.err == nil {
		it.err = err
	}
	if it.cancel != nil {
		it.cancel()
		it.cancel = nil
	}
	return it.err
}

// listDocumentRefs pages through the collection's document names.
func (c *Client) listDocumentRefs(ctx context.Context, col *CollectionRef, s readSettings) *DocumentRefIterator {
	if col == nil {
		return &DocumentRefIterator{err: fmt.Errorf("%w: nil collection reference", ErrInvalidPath)}
	}
	parent := resourcepath.Name(c.config.Database)
	if p := col.Parent(); p != nil {
		parent = p.Name()
	}
	return &DocumentRefIterator{c: c, ctx: ctx, parent: parent, collectionID: col.ID(), s: s}
}

// DocumentRefIterator yields document references page by page. It is not
// safe for concurrent use.
type DocumentRefIterator struct {
	c            *Client
	ctx          context.Context
	parent       string
	collectionID string
	s            readSettings

	items []*DocumentRef
	token string
	begun bool
	err   error
}

// Next returns the next document reference. It returns [io.EOF] when the
// listing is exhausted; any other error is sticky.
func (it *DocumentRefIterator) Next() (*DocumentRef, error) {
	if it.err != nil {
		return nil, it.err
	}
	for len(it.items) == 0 {
		if it.begun && it.token == "" {
			it.err = io.EOF
			return nil, it.err
		}
		if err := it.fetch(); err != nil {
			it.err = err
			return nil, it.err
		}
	}
	ref := it.items[0]
	it.items = it.items[1:]
	return ref, nil
}

func (it *DocumentRefIterator) fetch() error {
	resp, err := it.c.transport.ListDocuments(it.ctx, &rpc.ListDocumentsRequest{
		Parent:       it.parent,
		CollectionID: it.collectionID,
		PageSize:     it.s.pageSize,
		PageToken:    it.token,
		// A present-but-empty mask asks for names only; ShowMissing keeps
		// placeholder documents in the listing.
		Mask:        &rpc.DocumentMask{},
		ShowMissing: true,
		ReadTime:    it.s.readTime,
	}, it.s.call)
	if err != nil {
		return err
	}
	for _, doc := range resp.Documents {
		ref, err := it.c.refFromName(doc.Name)
		if err != nil {
			return err
		}
		it.items = append(it.items, ref)
	}
	it.token = resp.NextPageToken
	it.begun = true
	return nil
}

// listCollections pages through collection IDs under doc, or under the
// database root when doc is nil.
func (c *Client) listCollections(ctx context.Context, doc *DocumentRef, s readSettings) *CollectionIterator {
	parent := resourcepath.Name(c.config.Database)
	if doc != nil {
		parent = doc.Name()
	}
	return &CollectionIterator{c: c, ctx: ctx, parent: parent, doc: doc, s: s}
}

// CollectionIterator yields collection references page by page. It is not
// safe for concurrent use.
type CollectionIterator struct {
	c      *Client
	ctx    context.Context
	parent string
	doc    *DocumentRef
	s      readSettings

	items []*CollectionRef
	token string
	begun bool
	err   error
}

// Next returns the next collection reference. It returns [io.EOF] when the
// listing is exhausted; any other error is sticky.
func (it *CollectionIterator) Next() (*CollectionRef, error) {
	if it.err != nil {
		return nil, it.err
	}
	for len(it.items) == 0 {
		if it.begun && it.token == "" {
			it.err = io.EOF
			return nil, it.err
		}
		if err := it.fetch(); err != nil {
			it.err = err
			return nil, it.err
		}
	}
	ref := it.items[0]
	it.items = it.items[1:]
	return ref, nil
}

func (it *CollectionIterator) fetch() error {
	resp, err := it.c.transport.ListCollectionIDs(it.ctx, &rpc.ListCollectionIDsRequest{
		Parent:    it.parent,
		PageSize:  it.s.pageSize,
		PageToken: it.token,
	}, it.s.call)
	if err != nil {
		return err
	}
	for _, id := range resp.CollectionIDs {
		var ref *CollectionRef
		if it.doc != nil {
			ref = it.doc.Collection(id)
		} else {
			ref = it.c.Collection(id)
		}
		if ref == nil {
			return fmt.Errorf("%w: backend returned collection id %q", ErrInvalidPath, id)
		}
		it.items = append(it.items, ref)
	}
	it.token = resp.NextPageToken
	it.begun = true
	return nil
}
