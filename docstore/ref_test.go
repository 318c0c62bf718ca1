package docstore_test

import (
	"testing"
)

// --- Path Parsing ---

func TestClientCollection(t *testing.T) {
	c := newTestClient(&fakeTransport{})

	tests := []struct {
		name string
		path string
		want string // expected Path, "" means nil handle
	}{
		{name: "top level", path: "users", want: "users"},
		{name: "nested", path: "users/alice/posts", want: "users/alice/posts"},
		{name: "deeply nested", path: "users/alice/posts/p1/comments", want: "users/alice/posts/p1/comments"},
		{name: "document path", path: "users/alice", want: ""},
		{name: "empty", path: "", want: ""},
		{name: "empty segment", path: "users//posts", want: ""},
		{name: "trailing slash", path: "users/", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := c.Collection(tt.path)
			if tt.want == "" {
				if col != nil {
					t.Errorf("expected nil handle for %q, got %q", tt.path, col.Path())
				}
				return
			}
			if col == nil {
				t.Fatalf("expected handle for %q, got nil", tt.path)
			}
			if col.Path() != tt.want {
				t.Errorf("expected path %q, got %q", tt.want, col.Path())
			}
		})
	}
}

func TestClientDoc(t *testing.T) {
	c := newTestClient(&fakeTransport{})

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "top level", path: "users/alice", want: "users/alice"},
		{name: "nested", path: "users/alice/posts/p1", want: "users/alice/posts/p1"},
		{name: "collection path", path: "users", want: ""},
		{name: "empty", path: "", want: ""},
		{name: "empty segment", path: "users//posts/p1", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := c.Doc(tt.path)
			if tt.want == "" {
				if doc != nil {
					t.Errorf("expected nil handle for %q, got %q", tt.path, doc.Path())
				}
				return
			}
			if doc == nil {
				t.Fatalf("expected handle for %q, got nil", tt.path)
			}
			if doc.Path() != tt.want {
				t.Errorf("expected path %q, got %q", tt.want, doc.Path())
			}
		})
	}
}

// --- Navigation ---

func TestReferenceNavigation(t *testing.T) {
	c := newTestClient(&fakeTransport{})

	users := c.Collection("users")
	alice := users.Doc("alice")
	posts := alice.Collection("posts")

	if alice.ID() != "alice" {
		t.Errorf("expected doc ID 'alice', got %q", alice.ID())
	}
	if posts.Path() != "users/alice/posts" {
		t.Errorf("expected path 'users/alice/posts', got %q", posts.Path())
	}
	if posts.ID() != "posts" {
		t.Errorf("expected collection ID 'posts', got %q", posts.ID())
	}

	if parent := posts.Parent(); !parent.Equal(alice) {
		t.Errorf("expected posts parent 'users/alice', got %q", parent.Path())
	}
	if parent := alice.Parent(); !parent.Equal(users) {
		t.Errorf("expected alice parent 'users', got %q", parent.Path())
	}
	if parent := users.Parent(); parent != nil {
		t.Errorf("expected nil parent for top-level collection, got %q", parent.Path())
	}
}

func TestReferenceName(t *testing.T) {
	c := newTestClient(&fakeTransport{})

	doc := c.Doc("users/alice/posts/p1")
	want := "databases/test/documents/users/alice/posts/p1"
	if doc.Name() != want {
		t.Errorf("expected name %q, got %q", want, doc.Name())
	}
}

func TestDocRejectsInvalidID(t *testing.T) {
	c := newTestClient(&fakeTransport{})
	users := c.Collection("users")

	if doc := users.Doc(""); doc != nil {
		t.Errorf("expected nil handle for empty ID, got %q", doc.Path())
	}
	if doc := users.Doc("a/b"); doc != nil {
		t.Errorf("expected nil handle for ID with slash, got %q", doc.Path())
	}
	if col := users.Doc("alice").Collection(""); col != nil {
		t.Errorf("expected nil handle for empty collection ID, got %q", col.Path())
	}
}

func TestNewDoc(t *testing.T) {
	c := newTestClient(&fakeTransport{})
	users := c.Collection("users")

	d1 := users.NewDoc()
	d2 := users.NewDoc()

	if d1 == nil || d2 == nil {
		t.Fatal("expected NewDoc to return a handle")
	}
	if len(d1.ID()) != 20 {
		t.Errorf("expected 20-character auto ID, got %q (%d chars)", d1.ID(), len(d1.ID()))
	}
	if d1.ID() == d2.ID() {
		t.Errorf("expected distinct auto IDs, got %q twice", d1.ID())
	}
	if !d1.Parent().Equal(users) {
		t.Errorf("expected parent 'users', got %q", d1.Parent().Path())
	}
}

func TestReferenceEqual(t *testing.T) {
	c := newTestClient(&fakeTransport{})

	a := c.Doc("users/alice")
	b := c.Collection("users").Doc("alice")
	other := c.Doc("users/bob")

	if !a.Equal(b) {
		t.Error("expected handles for the same path to be equal")
	}
	if a.Equal(other) {
		t.Error("expected handles for different paths to differ")
	}
	if a.Equal(nil) {
		t.Error("expected handle.Equal(nil) to be false")
	}
}

// Doc handles must not share path storage with the collection they came
// from.
func TestDocHandlesDoNotAlias(t *testing.T) {
	c := newTestClient(&fakeTransport{})
	users := c.Collection("users")

	alice := users.Doc("alice")
	bob := users.Doc("bob")

	if alice.Path() != "users/alice" {
		t.Errorf("expected path 'users/alice', got %q", alice.Path())
	}
	if bob.Path() != "users/bob" {
		t.Errorf("expected path 'users/bob', got %q", bob.Path())
	}
}
