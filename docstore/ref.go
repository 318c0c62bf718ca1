package docstore

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/arbor/internal/resourcepath"
)

// Reference is a path-addressed handle: a [*CollectionRef] or a
// [*DocumentRef]. The two implementations are the only ones.
type Reference interface {
	// Path returns the relative slash-separated path.
	Path() string

	refSegments() []string
	refClient() *Client
}

// CollectionRef is an immutable handle to a collection. Collection paths
// have an odd number of segments: a collection ID, optionally preceded by
// alternating collection and document IDs.
type CollectionRef struct {
	c    *Client
	segs []string
}

// DocumentRef is an immutable handle to a document. Document paths have an
// even number of alternating collection and document IDs.
type DocumentRef struct {
	c    *Client
	segs []string
}

// newCollectionRef assumes segs are already validated.
func newCollectionRef(c *Client, segs []string) *CollectionRef {
	return &CollectionRef{c: c, segs: segs}
}

// newDocumentRef assumes segs are already validated.
func newDocumentRef(c *Client, segs []string) *DocumentRef {
	return &DocumentRef{c: c, segs: segs}
}

// ID returns the collection's own ID, the last path segment.
func (r *CollectionRef) ID() string {
	return r.segs[len(r.segs)-1]
}

// Path returns the relative slash-separated path.
func (r *CollectionRef) Path() string {
	return resourcepath.Join(r.segs...)
}

// Parent returns the document owning this collection, or nil for a top-level
// collection.
func (r *CollectionRef) Parent() *DocumentRef {
	if len(r.segs) == 1 {
		return nil
	}
	return newDocumentRef(r.c, r.segs[:len(r.segs)-1])
}

// Doc returns a handle to the document with the given ID inside this
// collection, or nil if the ID is not a valid single segment.
func (r *CollectionRef) Doc(id string) *DocumentRef {
	if resourcepath.Validate(id) != nil {
		return nil
	}
	return newDocumentRef(r.c, appendSegment(r.segs, id))
}

// NewDoc returns a handle to a document with a fresh random ID.
func (r *CollectionRef) NewDoc() *DocumentRef {
	return r.Doc(autoID())
}

// Equal reports whether two collection handles address the same path.
func (r *CollectionRef) Equal(other *CollectionRef) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Path() == other.Path()
}

func (r *CollectionRef) refSegments() []string { return r.segs }
func (r *CollectionRef) refClient() *Client    { return r.c }

// ID returns the document's own ID, the last path segment.
func (d *DocumentRef) ID() string {
	return d.segs[len(d.segs)-1]
}

// Path returns the relative slash-separated path.
func (d *DocumentRef) Path() string {
	return resourcepath.Join(d.segs...)
}

// Name returns the full resource name, e.g.
// "databases/default/documents/users/alice".
func (d *DocumentRef) Name() string {
	return resourcepath.Name(d.c.config.Database, d.segs...)
}

// Parent returns the collection containing this document.
func (d *DocumentRef) Parent() *CollectionRef {
	return newCollectionRef(d.c, d.segs[:len(d.segs)-1])
}

// Collection returns a handle to the sub-collection with the given ID under
// this document, or nil if the ID is not a valid single segment.
func (d *DocumentRef) Collection(id string) *CollectionRef {
	if resourcepath.Validate(id) != nil {
		return nil
	}
	return newCollectionRef(d.c, appendSegment(d.segs, id))
}

// Equal reports whether two document handles address the same path.
func (d *DocumentRef) Equal(other *DocumentRef) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Path() == other.Path()
}

func (d *DocumentRef) refSegments() []string { return d.segs }
func (d *DocumentRef) refClient() *Client    { return d.c }

// appendSegment extends a path without aliasing the parent's backing array.
func appendSegment(segs []string, id string) []string {
	out := make([]string, len(segs), len(segs)+1)
	copy(out, segs)
	return append(out, id)
}

// autoID returns a fresh random 20-character document ID.
func autoID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
