package object

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrOutsideRoot reports a key that does not resolve strictly inside the
	// storage root.
	ErrOutsideRoot = errors.New("object: path outside storage root")
	// ErrNotFound reports a missing object.
	ErrNotFound = errors.New("object: not found")
	// ErrNotObject reports a key that names a directory or other non-file.
	ErrNotObject = errors.New("object: not a regular object")
)

// Object is an opened stored object. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// ObjectStore saves, opens and removes binary objects addressed by a
// slash-separated key relative to the store root.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (Object, error)
	// Delete returns ErrNotFound when nothing was stored under key.
	Delete(ctx context.Context, key string) error
	// Provider names the backend for audit records.
	Provider() string
}
