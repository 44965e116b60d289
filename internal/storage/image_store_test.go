package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type memUpload struct {
	name string
	body string
}

func (u memUpload) Filename() string { return u.name }

func (u memUpload) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(u.body)), nil
}

func TestDiskStoreSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "uploads")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	ref, err := store.Save(context.Background(), memUpload{name: "../../etc/screen shot.png", body: "png"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(ref, "/uploads/") || !strings.HasSuffix(ref, "-screen_shot.png") {
		t.Fatalf("unexpected ref %q", ref)
	}
	path := filepath.Join(dir, strings.TrimPrefix(ref, "/uploads/"))
	content, err := os.ReadFile(path)
	if err != nil || string(content) != "png" {
		t.Fatalf("stored content = %q, %v", content, err)
	}

	if err := store.Remove(context.Background(), ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestDiskStoreSaveNamesAreUnique(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	a, err := store.Save(context.Background(), memUpload{name: "a.png"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.Save(context.Background(), memUpload{name: "a.png"})
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("expected distinct refs, got %q twice", a)
	}
}

func TestDiskStoreRemoveRejectsForeignRefs(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []string{"/etc/passwd", "/uploads/../secret", "/uploads/", "uploads/x.png"} {
		if err := store.Remove(context.Background(), ref); err == nil {
			t.Errorf("Remove(%q) succeeded, want error", ref)
		}
	}
}

func TestSavePathUpload(t *testing.T) {
	src := filepath.Join(t.TempDir(), "router.jpg")
	if err := os.WriteFile(src, []byte("jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := NewDiskStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}

	uploads := FromPaths([]string{src})
	if len(uploads) != 1 || uploads[0].Filename() != "router.jpg" {
		t.Fatalf("uploads = %v", uploads)
	}
	ref, err := store.Save(context.Background(), uploads[0])
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(store.Dir(), strings.TrimPrefix(ref, "/uploads/")))
	if err != nil || string(got) != "jpeg" {
		t.Fatalf("stored %q, %v", got, err)
	}

	if _, err := store.Save(context.Background(), PathUpload(filepath.Join(t.TempDir(), "missing.png"))); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
