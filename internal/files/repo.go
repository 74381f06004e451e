package files

import (
	"context"
	"time"
)

// Repo is the upload ledger. It records what was stored; the object store
// remains the source of truth for bytes.
type Repo interface {
	Create(ctx context.Context, f StoredFile) error
	// MarkDeleted stamps the live record for relativePath, reporting whether one existed.
	MarkDeleted(ctx context.Context, relativePath string, at time.Time) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]StoredFile, error)
}
