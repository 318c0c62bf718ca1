package docstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jacentio/arbor/rpc"
)

// SetOption tunes Set operations.
type SetOption func(*setSettings)

type setSettings struct {
	merge bool
}

// Merge makes Set update only the supplied top-level fields instead of
// replacing the whole document. The document is created if absent.
func Merge() SetOption {
	return func(s *setSettings) {
		s.merge = true
	}
}

// Create stores the document, failing the commit if it already exists.
func (d *DocumentRef) Create(ctx context.Context, data map[string]any) (*rpc.WriteResult, error) {
	name, err := documentName(d)
	if err != nil {
		return nil, err
	}
	return d.c.commitOne(ctx, newCreateWrite(name, data))
}

// Set stores the document unconditionally, replacing any existing data
// unless [Merge] is given.
func (d *DocumentRef) Set(ctx context.Context, data map[string]any, opts ...SetOption) (*rpc.WriteResult, error) {
	name, err := documentName(d)
	if err != nil {
		return nil, err
	}
	return d.c.commitOne(ctx, newSetWrite(name, data, opts))
}

// Update merges the given top-level fields into the document, failing the
// commit if it does not exist. Supplying [LastUpdateTime] replaces the
// existence check with an exact update-time match.
func (d *DocumentRef) Update(ctx context.Context, data map[string]any, preconds ...Precondition) (*rpc.WriteResult, error) {
	name, err := documentName(d)
	if err != nil {
		return nil, err
	}
	w, err := newUpdateWrite(name, data, preconds)
	if err != nil {
		return nil, err
	}
	return d.c.commitOne(ctx, w)
}

// Delete removes the document. Deleting an absent document succeeds unless a
// precondition says otherwise.
func (d *DocumentRef) Delete(ctx context.Context, preconds ...Precondition) (*rpc.WriteResult, error) {
	name, err := documentName(d)
	if err != nil {
		return nil, err
	}
	w, err := newDeleteWrite(name, preconds)
	if err != nil {
		return nil, err
	}
	return d.c.commitOne(ctx, w)
}

// Add stores data under a fresh random ID and returns the new document's
// handle along with the write result.
func (r *CollectionRef) Add(ctx context.Context, data map[string]any) (*DocumentRef, *rpc.WriteResult, error) {
	if r == nil {
		return nil, nil, fmt.Errorf("%w: nil collection reference", ErrInvalidPath)
	}
	doc := r.NewDoc()
	res, err := doc.Create(ctx, data)
	if err != nil {
		return nil, nil, err
	}
	return doc, res, nil
}

// documentName validates the handle and returns its full resource name.
func documentName(d *DocumentRef) (string, error) {
	if d == nil {
		return "", fmt.Errorf("%w: nil document reference", ErrInvalidPath)
	}
	return d.Name(), nil
}

// newCreateWrite builds the write for a create: store the document,
// requiring it to be absent.
func newCreateWrite(name string, data map[string]any) *rpc.Write {
	absent := false
	return &rpc.Write{
		Update:          &rpc.Document{Name: name, Fields: data},
		CurrentDocument: &rpc.Precondition{Exists: &absent},
	}
}

// newSetWrite builds the write for a set: replace the document, or mask the
// write down to the supplied top-level fields when merging.
func newSetWrite(name string, data map[string]any, opts []SetOption) *rpc.Write {
	var s setSettings
	for _, opt := range opts {
		opt(&s)
	}
	w := &rpc.Write{Update: &rpc.Document{Name: name, Fields: data}}
	if s.merge {
		w.UpdateMask = &rpc.DocumentMask{FieldPaths: sortedFieldPaths(data)}
	}
	return w
}

// newUpdateWrite builds the write for an update: mask the write to the given
// fields, defaulting to an existence precondition.
func newUpdateWrite(name string, data map[string]any, preconds []Precondition) (*rpc.Write, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("arbor: update of %q carries no fields", name)
	}
	cond, err := combinePreconditions(preconds)
	if err != nil {
		return nil, err
	}
	if cond == nil {
		present := true
		cond = &rpc.Precondition{Exists: &present}
	}
	return &rpc.Write{
		Update:          &rpc.Document{Name: name, Fields: data},
		UpdateMask:      &rpc.DocumentMask{FieldPaths: sortedFieldPaths(data)},
		CurrentDocument: cond,
	}, nil
}

// newDeleteWrite builds the write for a delete.
func newDeleteWrite(name string, preconds []Precondition) (*rpc.Write, error) {
	cond, err := combinePreconditions(preconds)
	if err != nil {
		return nil, err
	}
	return &rpc.Write{Delete: name, CurrentDocument: cond}, nil
}

func sortedFieldPaths(data map[string]any) []string {
	paths := make([]string, 0, len(data))
	for k := range data {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}
