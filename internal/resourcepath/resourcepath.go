// Package resourcepath provides slash-separated resource path helpers shared
// by the docstore and rpc packages.
package resourcepath

import (
	"fmt"
	"strings"
)

// Paths alternate collection and document IDs, so a path ending on a
// collection has an odd number of segments and a path ending on a document
// has an even number.

// Split breaks a relative path into its segments. The empty path has none.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Join assembles segments into a relative path.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Validate checks that every segment is a usable resource ID: non-empty and
// free of path separators.
func Validate(segments ...string) error {
	for i, s := range segments {
		if s == "" {
			return fmt.Errorf("segment %d of %q is empty", i, Join(segments...))
		}
		if strings.Contains(s, "/") {
			return fmt.Errorf("segment %d (%q) contains a path separator", i, s)
		}
	}
	return nil
}

// ValidateCollection checks that segments form a collection path: valid IDs
// ending on a collection.
func ValidateCollection(segments ...string) error {
	if err := Validate(segments...); err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("a collection path requires at least one segment")
	}
	if len(segments)%2 == 0 {
		return fmt.Errorf("collection path %q has %d segments, want odd", Join(segments...), len(segments))
	}
	return nil
}

// ValidateDocument checks that segments form a document path: valid IDs
// ending on a document.
func ValidateDocument(segments ...string) error {
	if err := Validate(segments...); err != nil {
		return err
	}
	if len(segments) == 0 || len(segments)%2 != 0 {
		return fmt.Errorf("document path %q has %d segments, want even", Join(segments...), len(segments))
	}
	return nil
}

// Name builds the full resource name for a relative path under a database.
// With no segments it names the database's document root.
func Name(database string, segments ...string) string {
	if len(segments) == 0 {
		return database + "/documents"
	}
	return database + "/documents/" + Join(segments...)
}

// Relative extracts the relative path from a full resource name, reporting
// whether the name lies under the given database.
func Relative(database, name string) (string, bool) {
	root := database + "/documents"
	if name == root {
		return "", true
	}
	rest, ok := strings.CutPrefix(name, root+"/")
	if !ok {
		return "", false
	}
	return rest, true
}
