package staging

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateThenOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	f, err := store.Create("alice", "bob", "photo.png")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.WriteString("hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := store.Open("alice", "bob", "photo.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", data, "hello")
	}
}

func TestPathSanitizesTraversal(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	f, err := store.Create("../../etc", "bob", "../../passwd")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Close()

	want := filepath.Join(root, "etc", "bob", "passwd")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected sanitized path %s to exist: %v", want, err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := New(t.TempDir())

	if err := store.Delete("alice", "bob", "never-existed.bin"); err != nil {
		t.Fatalf("deleting an absent file should not error: %v", err)
	}

	f, err := store.Create("alice", "bob", "file.bin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Close()

	if err := store.Delete("alice", "bob", "file.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete("alice", "bob", "file.bin"); err != nil {
		t.Fatalf("second Delete should also be a no-op: %v", err)
	}

	if _, err := store.Open("alice", "bob", "file.bin"); err == nil {
		t.Fatal("expected Open to fail after Delete")
	}
}
