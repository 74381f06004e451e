package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dsr-backend/internal/shared/storage/object"
)

// Store implements ObjectStore on the local filesystem. Every key is
// resolved through object.Resolve before the filesystem is touched.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a store rooted there.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads path: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute storage root.
func (s *Store) Root() string { return s.root }

func (s *Store) Provider() string { return "local" }

// Put streams r to a temp file in the target directory, fsyncs it and
// renames it into place, so readers never observe a partial object.
func (s *Store) Put(ctx context.Context, key, _ string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := object.Resolve(s.root, key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return written, nil
}

// Open opens a stored object for reading. Directories read as missing.
func (s *Store) Open(ctx context.Context, key string) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}
	fullPath, err := object.Resolve(s.root, key)
	if err != nil {
		return object.Object{}, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return object.Object{}, object.ErrNotFound
		}
		return object.Object{}, fmt.Errorf("open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return object.Object{}, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return object.Object{}, object.ErrNotFound
	}
	return object.Object{Body: f, Size: info.Size()}, nil
}

// Delete removes a stored object. Directories are refused with ErrNotObject.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := object.Resolve(s.root, key)
	if err != nil {
		return err
	}

	info, err := os.Lstat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return object.ErrNotFound
		}
		return fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return object.ErrNotObject
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return object.ErrNotFound
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

var _ object.ObjectStore = (*Store)(nil)
