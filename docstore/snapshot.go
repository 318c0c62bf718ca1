package docstore

import (
	"time"

	"github.com/jacentio/arbor/rpc"
)

// DocumentSnapshot is a read result: a document reference plus the document
// state observed at read time.
type DocumentSnapshot struct {
	// Ref is the document this snapshot describes.
	Ref *DocumentRef

	// CreateTime and UpdateTime are zero when the document does not exist.
	CreateTime time.Time
	UpdateTime time.Time

	// ReadTime is the snapshot time of the read.
	ReadTime time.Time

	exists bool
	fields map[string]any
}

// Exists reports whether the document was present at read time.
func (s *DocumentSnapshot) Exists() bool {
	return s.exists
}

// Data returns a fresh shallow copy of the document's fields, or nil when
// the document does not exist.
func (s *DocumentSnapshot) Data() map[string]any {
	if !s.exists {
		return nil
	}
	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Get returns one top-level field and whether it is present.
func (s *DocumentSnapshot) Get(field string) (any, bool) {
	v, ok := s.fields[field]
	return v, ok
}

// foundSnapshot builds the snapshot of an existing wire document.
func foundSnapshot(ref *DocumentRef, doc *rpc.Document, readTime time.Time) *DocumentSnapshot {
	return &DocumentSnapshot{
		Ref:        ref,
		CreateTime: doc.CreateTime,
		UpdateTime: doc.UpdateTime,
		ReadTime:   readTime,
		exists:     true,
		fields:     doc.Fields,
	}
}

// missingSnapshot builds the snapshot of an absent document.
func missingSnapshot(ref *DocumentRef, readTime time.Time) *DocumentSnapshot {
	return &DocumentSnapshot{Ref: ref, ReadTime: readTime}
}
