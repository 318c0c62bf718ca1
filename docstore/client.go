package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jacentio/arbor/internal/resourcepath"
	"github.com/jacentio/arbor/rpc"
)

// Client provides document operations over an injected transport.
type Client struct {
	transport rpc.Transport
	config    Config
	logger    *slog.Logger
}

// New creates a new Client instance.
func New(transport rpc.Transport, config Config) *Client {
	config.validate()
	return &Client{
		transport: transport,
		config:    config,
		logger:    config.Logger,
	}
}

// Database returns the database resource name this client addresses.
func (c *Client) Database() string {
	return c.config.Database
}

// Collection returns a handle to the collection at the given slash-separated
// path, or nil if the path is not a valid collection path.
func (c *Client) Collection(path string) *CollectionRef {
	segs := resourcepath.Split(path)
	if resourcepath.ValidateCollection(segs...) != nil {
		return nil
	}
	return newCollectionRef(c, segs)
}

// Doc returns a handle to the document at the given slash-separated path, or
// nil if the path is not a valid document path.
func (c *Client) Doc(path string) *DocumentRef {
	segs := resourcepath.Split(path)
	if resourcepath.ValidateDocument(segs...) != nil {
		return nil
	}
	return newDocumentRef(c, segs)
}

// GetAll reads the given documents in one streaming call. Results arrive in
// whatever order the backend chooses, one snapshot per reference; absent
// documents yield snapshots with Exists() == false.
func (c *Client) GetAll(ctx context.Context, refs []*DocumentRef, opts ...ReadOption) ([]*DocumentSnapshot, error) {
	return c.getAll(ctx, refs, nil, collectReadSettings(opts))
}

// Get reads one document. An absent document yields a snapshot with
// Exists() == false rather than an error.
func (d *DocumentRef) Get(ctx context.Context, opts ...ReadOption) (*DocumentSnapshot, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil document reference", ErrInvalidPath)
	}
	return d.c.getDoc(ctx, d, nil, collectReadSettings(opts))
}

// Collections lists the database's top-level collections.
func (c *Client) Collections(ctx context.Context, opts ...ReadOption) *CollectionIterator {
	return c.listCollections(ctx, nil, collectReadSettings(opts))
}

// Collections lists the sub-collections of this document.
func (d *DocumentRef) Collections(ctx context.Context, opts ...ReadOption) *CollectionIterator {
	if d == nil {
		return &CollectionIterator{err: fmt.Errorf("%w: nil document reference", ErrInvalidPath)}
	}
	return d.c.listCollections(ctx, d, collectReadSettings(opts))
}

// getDoc reads one document, inside a transaction when txn is non-nil.
func (c *Client) getDoc(ctx context.Context, ref *DocumentRef, txn []byte, s readSettings) (*DocumentSnapshot, error) {
	snaps, err := c.getAll(ctx, []*DocumentRef{ref}, txn, s)
	if err != nil {
		return nil, err
	}
	if len(snaps) != 1 {
		return nil, fmt.Errorf("arbor: expected 1 read result for %q, got %d", ref.Path(), len(snaps))
	}
	return snaps[0], nil
}

// getAll implements batch reads for the client and for transactions.
func (c *Client) getAll(ctx context.Context, refs []*DocumentRef, txn []byte, s readSettings) ([]*DocumentSnapshot, error) {
	names := make([]string, 0, len(refs))
	byName := make(map[string]*DocumentRef, len(refs))
	for _, ref := range refs {
		if ref == nil {
			return nil, fmt.Errorf("%w: nil document reference", ErrInvalidPath)
		}
		name := ref.Name()
		names = append(names, name)
		byName[name] = ref
	}

	stream, err := c.transport.BatchGetDocuments(ctx, &rpc.BatchGetDocumentsRequest{
		Database:    c.config.Database,
		Documents:   names,
		Transaction: txn,
		ReadTime:    s.readTime,
	}, s.call)
	if err != nil {
		return nil, err
	}

	snaps := make([]*DocumentSnapshot, 0, len(refs))
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		snap, err := c.batchSnapshot(resp, byName)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// batchSnapshot maps one streamed batch result back to the reference that
// asked for it.
func (c *Client) batchSnapshot(resp *rpc.BatchGetDocumentsResponse, byName map[string]*DocumentRef) (*DocumentSnapshot, error) {
	switch {
	case resp.Found != nil:
		ref, ok := byName[resp.Found.Name]
		if !ok {
			return nil, fmt.Errorf("arbor: backend returned unrequested document %q", resp.Found.Name)
		}
		return foundSnapshot(ref, resp.Found, resp.ReadTime), nil
	case resp.Missing != "":
		ref, ok := byName[resp.Missing]
		if !ok {
			return nil, fmt.Errorf("arbor: backend returned unrequested document %q", resp.Missing)
		}
		return missingSnapshot(ref, resp.ReadTime), nil
	default:
		return nil, errors.New("arbor: batch read result names no document")
	}
}

// refFromName rebuilds a document handle from a full resource name.
func (c *Client) refFromName(name string) (*DocumentRef, error) {
	rel, ok := resourcepath.Relative(c.config.Database, name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is outside database %q", ErrInvalidPath, name, c.config.Database)
	}
	segs := resourcepath.Split(rel)
	if err := resourcepath.ValidateDocument(segs...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return newDocumentRef(c, segs), nil
}

// commitWrites sends writes in one commit, inside a transaction when txn is
// non-nil.
func (c *Client) commitWrites(ctx context.Context, writes []*rpc.Write, txn []byte) ([]*rpc.WriteResult, error) {
	resp, err := c.transport.Commit(ctx, &rpc.CommitRequest{
		Database:    c.config.Database,
		Writes:      writes,
		Transaction: txn,
	}, rpc.CallOptions{})
	if err != nil {
		return nil, err
	}
	return resp.WriteResults, nil
}

// commitOne applies a single standalone write.
func (c *Client) commitOne(ctx context.Context, w *rpc.Write) (*rpc.WriteResult, error) {
	results, err := c.commitWrites(ctx, []*rpc.Write{w}, nil)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("arbor: expected 1 write result, got %d", len(results))
	}
	return results[0], nil
}

// RecursiveDelete deletes the referenced document or collection and
// everything beneath it, feeding the deletes through a bulk writer. It
// returns the number of deletes enqueued. The bulk writer is closed when the
// walk finishes, whether it was supplied via [WithBulkWriter] or created
// here.
func (c *Client) RecursiveDelete(ctx context.Context, ref Reference, opts ...RecursiveDeleteOption) (int, error) {
	if ref == nil {
		return 0, fmt.Errorf("%w: nil reference", ErrInvalidPath)
	}
	var s recursiveDeleteSettings
	for _, opt := range opts {
		opt(&s)
	}
	bw := s.bulkWriter
	if bw == nil {
		bw = c.BulkWriter(ctx)
	}
	return c.recursiveDelete(ctx, ref, bw, 0)
}

// recursiveDelete walks depth-first: a collection deletes each of its
// documents, a document deletes its sub-collections before itself. The bulk
// writer is closed exactly once, at depth 0.
func (c *Client) recursiveDelete(ctx context.Context, ref Reference, bw *BulkWriter, depth int) (int, error) {
	count, err := c.deleteDescendants(ctx, ref, bw, depth)
	if depth == 0 {
		closeErr := bw.Close(ctx)
		if err == nil {
			err = closeErr
		}
	}
	return count, err
}

func (c *Client) deleteDescendants(ctx context.Context, ref Reference, bw *BulkWriter, depth int) (int, error) {
	count := 0
	switch r := ref.(type) {
	case *CollectionRef:
		// Placeholder documents have no data but may own sub-collections,
		// so the listing must include them.
		it := c.listDocumentRefs(ctx, r, readSettings{})
		for {
			doc, err := it.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return count, err
			}
			n, err := c.deleteDescendants(ctx, doc, bw, depth+1)
			count += n
			if err != nil {
				return count, err
			}
		}
	case *DocumentRef:
		cols := c.listCollections(ctx, r, readSettings{})
		for {
			col, err := cols.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return count, err
			}
			n, err := c.deleteDescendants(ctx, col, bw, depth+1)
			count += n
			if err != nil {
				return count, err
			}
		}
		if err := bw.Delete(r); err != nil {
			return count, err
		}
		count++
	default:
		return 0, fmt.Errorf("%w: unsupported reference %T", ErrInvalidPath, ref)
	}
	return count, nil
}
