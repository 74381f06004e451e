package files

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	files map[string]StoredFile
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{files: make(map[string]StoredFile)}
}

func (r *MemoryRepo) Create(ctx context.Context, f StoredFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	r.files[f.ID] = f
	return nil
}

func (r *MemoryRepo) MarkDeleted(ctx context.Context, relativePath string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.files {
		if f.RelativePath == relativePath && f.DeletedAt == nil {
			ts := at.UTC()
			f.DeletedAt = &ts
			r.files[id] = f
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]StoredFile, 0, len(r.files))
	for _, f := range r.files {
		if f.DeletedAt != nil {
			continue
		}
		if filter.Category != "" && f.Category != filter.Category {
			continue
		}
		out = append(out, f)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset >= len(out) {
		return []StoredFile{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
