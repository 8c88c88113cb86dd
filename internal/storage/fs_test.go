package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/chronicle/internal/apperr"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestFSContract(t *testing.T) {
	runContract(t, tempStore(t))
}

func TestFSIDIsName(t *testing.T) {
	s := tempStore(t)
	id, err := s.Create(context.Background(), "summary-weekly-2024-W18-abc", []byte("{}"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "summary-weekly-2024-W18-abc" {
		t.Errorf("id = %q", id)
	}
	if _, err := os.Stat(filepath.Join(s.root, id+objectExt)); err != nil {
		t.Errorf("object file missing: %v", err)
	}
}

func TestFSInvalidNamesRejected(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
		"nested/name",
		".hidden",
		"",
	}
	for _, name := range cases {
		if _, err := s.Get(ctx, name); err == nil {
			t.Errorf("expected error for get %q", name)
		}
		if _, err := s.Create(ctx, name, []byte("x")); err == nil {
			t.Errorf("expected error for create %q", name)
		}
	}
}

func TestFSAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id, _ := s.Create(ctx, "atomic", []byte("original"))

	if err := s.Update(ctx, id, []byte("updated")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Get(ctx, id)
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".chronicle-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestFSListSkipsForeignFiles(t *testing.T) {
	s := tempStore(t)
	_ = os.WriteFile(filepath.Join(s.root, "readme.txt"), []byte("x"), 0o644)
	_ = os.Mkdir(filepath.Join(s.root, "summary-dir.json"), 0o755)
	_, _ = s.Create(context.Background(), "summary-a", []byte("{}"))

	items, err := s.List(context.Background(), "summary-")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Name != "summary-a" {
		t.Errorf("items = %+v", items)
	}
}

func TestFSOpenerIsolatesUsers(t *testing.T) {
	opener, err := NewFSOpener(filepath.Join(t.TempDir(), "objects"))
	if err != nil {
		t.Fatalf("NewFSOpener: %v", err)
	}
	runIsolation(t, opener)
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "chronicle-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestUserKey(t *testing.T) {
	if k, err := UserKey("ada@example.com"); err != nil || k != "ada@example.com" {
		t.Errorf("UserKey = %q, %v", k, err)
	}
	if k, _ := UserKey("../evil"); k != ".._evil" {
		t.Errorf("UserKey traversal = %q", k)
	}
	for _, bad := range []string{"", "   ", "..", "."} {
		if _, err := UserKey(bad); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("UserKey(%q) err = %v", bad, err)
		}
	}
}

// runContract exercises the Provider behavior shared by every backend.
func runContract(t *testing.T, s Provider) {
	t.Helper()
	ctx := context.Background()

	id, err := s.Create(ctx, "summary-weekly-a", []byte("one"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("content = %q", got)
	}

	if _, err := s.Create(ctx, "summary-weekly-a", []byte("dup")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v", err)
	}

	if err := s.Update(ctx, id, []byte("two")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = s.Get(ctx, id)
	if string(got) != "two" {
		t.Errorf("content after update = %q", got)
	}

	_, _ = s.Create(ctx, "summary-weekly-b", []byte("b"))
	_, _ = s.Create(ctx, "summary-monthly-c", []byte("c"))
	_, _ = s.Create(ctx, "summary_weekly_x", []byte("x"))

	items, err := s.List(ctx, "summary-weekly-")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Name != "summary-weekly-a" || items[1].Name != "summary-weekly-b" {
		t.Errorf("list = %+v", items)
	}

	all, _ := s.List(ctx, "")
	if len(all) != 4 {
		t.Errorf("list all len = %d, want 4", len(all))
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if err := s.Update(ctx, id, []byte("x")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
}

func runIsolation(t *testing.T, o Opener) {
	t.Helper()
	ctx := context.Background()
	alice, err := o.ForUser("alice")
	if err != nil {
		t.Fatalf("ForUser alice: %v", err)
	}
	bob, err := o.ForUser("bob")
	if err != nil {
		t.Fatalf("ForUser bob: %v", err)
	}
	if _, err := alice.Create(ctx, "summary-weekly-a", []byte("alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	items, err := bob.List(ctx, "summary-")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("bob sees alice's objects: %+v", items)
	}
	if _, err := o.ForUser(""); err == nil {
		t.Error("expected error for empty user")
	}
}
