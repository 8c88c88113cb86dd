package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/chronicle/internal/apperr"
	"github.com/starford/chronicle/internal/models"
)

const objectExt = ".json"

// FSOpener opens per-user FS stores below a shared root directory.
type FSOpener struct {
	root string
}

// NewFSOpener creates an opener rooted at dir, creating it when missing.
func NewFSOpener(dir string) (*FSOpener, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir root: %w", err)
	}
	return &FSOpener{root: abs}, nil
}

// ForUser returns the store under root/<user>.
func (o *FSOpener) ForUser(user string) (Provider, error) {
	key, err := UserKey(user)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(o.root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir user dir: %w", err)
	}
	return NewFS(dir)
}

// FS implements Provider with one JSON file per object. The object id is
// its name.
type FS struct {
	root string // absolute path to the user directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// objectPath maps an object name to its file and rejects names that would
// leave the root or nest into subdirectories.
func (f *FS) objectPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("storage: invalid object name %q", name)
	}
	abs := filepath.Join(f.root, name+objectExt)
	if filepath.Dir(abs) != f.root {
		return "", fmt.Errorf("storage: object name escapes root: %q", name)
	}
	return abs, nil
}

// List returns objects whose name starts with prefix.
func (f *FS) List(ctx context.Context, prefix string) ([]models.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.ObjectInfo
	for _, d := range dirEntries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), objectExt) || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		name := strings.TrimSuffix(d.Name(), objectExt)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, models.ObjectInfo{ID: name, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the raw bytes of an object.
func (f *FS) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := f.objectPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: get %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", id, err)
	}
	return data, nil
}

// Create writes a new object and returns ErrAlreadyExists when the name is
// taken. The existence check is not atomic with the write, so racing creates
// of one name can both succeed; the later rename wins.
func (f *FS) Create(ctx context.Context, name string, blob []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, err := f.objectPath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err == nil {
		return "", fmt.Errorf("storage: create %s: %w", name, apperr.ErrAlreadyExists)
	}
	if err := f.write(abs, blob); err != nil {
		return "", err
	}
	return name, nil
}

// Update replaces an existing object.
func (f *FS) Update(ctx context.Context, id string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := f.objectPath(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: update %s: %w", id, apperr.ErrNotFound)
	}
	return f.write(abs, blob)
}

// Delete removes an object.
func (f *FS) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := f.objectPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}

// write atomically writes content: tmp file → fsync → rename.
func (f *FS) write(abs string, content []byte) error {
	tmp, err := os.CreateTemp(f.root, ".chronicle-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
