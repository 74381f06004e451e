package files

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"dsr-backend/internal/queue"
	"dsr-backend/internal/shared/metrics"
	"dsr-backend/internal/shared/storage/object"
	"dsr-backend/internal/shared/telemetry"
	"dsr-backend/internal/shared/util"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes int64 = 5 << 20

const legacyPrefix = "uploads/"

// Service implements intake, retrieval and deletion of stored files.
type Service struct {
	Store    object.ObjectStore
	Repo     Repo
	MaxBytes int64
	Now      func() time.Time
	// Events receives file.stored and file.deleted notifications. Optional.
	Events queue.Client
}

func NewService(store object.ObjectStore, repo Repo, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		Store:    store,
		Repo:     repo,
		MaxBytes: maxBytes,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates and stores one file. Validation runs in a fixed order:
// presence, declared type, size.
func (s *Service) Upload(ctx context.Context, in UploadInput) (StoredFile, error) {
	if in.Body == nil {
		return StoredFile{}, ErrNoFile
	}
	category := CategoryFor(in.Type)
	declared := baseMimeType(in.MimeType)
	if !category.Allows(declared) {
		metrics.ObserveFileOp("upload", string(category), "rejected")
		return StoredFile{}, &UnsupportedTypeError{Category: category}
	}
	if in.Size > s.MaxBytes {
		metrics.ObserveFileOp("upload", string(category), "rejected")
		return StoredFile{}, ErrTooLarge
	}

	id, err := util.RandomHex(16)
	if err != nil {
		return StoredFile{}, fmt.Errorf("%w: generate name: %v", ErrStorage, err)
	}
	fileName := util.SanitizeTag(in.Type, string(CategoryMisc)) + "-" + id + util.FileExt(in.OriginalName)
	key := category.Dir() + "/" + fileName

	br := bufio.NewReaderSize(io.LimitReader(in.Body, s.MaxBytes+1), sniffLen)
	head, _ := br.Peek(sniffLen)
	detected := sniff(head)

	written, err := s.Store.Put(ctx, key, declared, br)
	if err != nil {
		telemetry.Error("upload.store_failed", map[string]any{"key": key, "error": err})
		metrics.ObserveFileOp("upload", string(category), "error")
		return StoredFile{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if written > s.MaxBytes {
		s.discard(ctx, key, "oversize")
		metrics.ObserveFileOp("upload", string(category), "rejected")
		return StoredFile{}, ErrTooLarge
	}
	if !detected.Is(declared) {
		telemetry.Warn("upload.mime_mismatch", map[string]any{
			"key":      key,
			"declared": declared,
			"detected": detected.String(),
		})
	}

	rec := StoredFile{
		ID:               uuid.NewString(),
		Category:         category,
		FileName:         fileName,
		OriginalName:     util.SanitizeFileName(in.OriginalName),
		RelativePath:     key,
		SizeBytes:        written,
		MimeType:         declared,
		DetectedMimeType: detected.String(),
		StorageProvider:  s.Store.Provider(),
		UploadedBy:       in.UploadedBy,
		CreatedAt:        s.Now(),
	}
	if s.Repo != nil {
		if err := s.Repo.Create(ctx, rec); err != nil {
			telemetry.Error("upload.ledger_failed", map[string]any{"key": key, "error": err})
			s.discard(ctx, key, "ledger")
			metrics.ObserveFileOp("upload", string(category), "error")
			return StoredFile{}, fmt.Errorf("%w: record upload: %v", ErrStorage, err)
		}
	}

	s.publish(ctx, queue.Event{
		Type:       queue.EventFileStored,
		FilePath:   key,
		Category:   string(category),
		FileSize:   written,
		FileType:   declared,
		UploadedBy: in.UploadedBy,
	})
	metrics.ObserveFileOp("upload", string(category), "ok")
	metrics.ObserveUploadBytes(string(category), written)
	telemetry.Info("upload.stored", map[string]any{
		"key":         key,
		"size_bytes":  written,
		"mime_type":   declared,
		"uploaded_by": in.UploadedBy,
	})
	return rec, nil
}

// Open resolves a retrieval path and opens the stored bytes.
func (s *Service) Open(ctx context.Context, rawPath string) (Download, error) {
	p := strings.TrimPrefix(rawPath, "/")
	p = strings.TrimPrefix(p, legacyPrefix)
	if p == "" {
		return Download{}, ErrNotFound
	}

	obj, err := s.Store.Open(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, object.ErrOutsideRoot):
			metrics.ObserveFileOp("download", "", "denied")
			telemetry.Warn("download.outside_root", map[string]any{"path": rawPath})
			return Download{}, ErrAccessDenied
		case errors.Is(err, object.ErrNotFound), errors.Is(err, object.ErrNotObject):
			metrics.ObserveFileOp("download", "", "not_found")
			return Download{}, ErrNotFound
		default:
			telemetry.Error("download.open_failed", map[string]any{"path": p, "error": err})
			metrics.ObserveFileOp("download", "", "error")
			return Download{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	metrics.ObserveFileOp("download", categoryOfKey(p), "ok")
	return Download{
		Body:        obj.Body,
		Size:        obj.Size,
		ContentType: ContentTypeFor(p),
		Path:        p,
	}, nil
}

// Delete removes a stored file. A missing file is a success with
// Existed=false so callers can retry freely.
func (s *Service) Delete(ctx context.Context, filePath string) (DeleteResult, error) {
	p := strings.TrimSpace(filePath)
	if strings.HasPrefix(p, "/"+legacyPrefix) {
		p = strings.TrimPrefix(p, "/"+legacyPrefix)
	} else {
		p = strings.TrimPrefix(p, legacyPrefix)
	}
	if p == "" {
		return DeleteResult{}, ErrInvalidPath
	}
	if key, err := object.CleanKey(p); err == nil && isCategoryDir(key) {
		metrics.ObserveFileOp("delete", "", "denied")
		telemetry.Warn("delete.invalid_path", map[string]any{"path": filePath})
		return DeleteResult{}, ErrInvalidPath
	}

	err := s.Store.Delete(ctx, p)
	switch {
	case err == nil:
	case errors.Is(err, object.ErrNotFound):
		metrics.ObserveFileOp("delete", categoryOfKey(p), "absent")
		return DeleteResult{Path: p, Existed: false}, nil
	case errors.Is(err, object.ErrOutsideRoot), errors.Is(err, object.ErrNotObject):
		metrics.ObserveFileOp("delete", "", "denied")
		telemetry.Warn("delete.invalid_path", map[string]any{"path": filePath})
		return DeleteResult{}, ErrInvalidPath
	default:
		telemetry.Error("delete.remove_failed", map[string]any{"path": p, "error": err})
		metrics.ObserveFileOp("delete", categoryOfKey(p), "error")
		return DeleteResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if s.Repo != nil {
		if key, kerr := object.CleanKey(p); kerr == nil {
			if _, err := s.Repo.MarkDeleted(ctx, key, s.Now()); err != nil {
				telemetry.Error("delete.ledger_failed", map[string]any{"path": key, "error": err})
			}
		}
	}
	s.publish(ctx, queue.Event{
		Type:     queue.EventFileDeleted,
		FilePath: p,
		Category: categoryOfKey(p),
	})
	metrics.ObserveFileOp("delete", categoryOfKey(p), "ok")
	telemetry.Info("delete.removed", map[string]any{"path": p})
	return DeleteResult{Path: p, Existed: true}, nil
}

// List returns a page of live ledger records, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]StoredFile, error) {
	if s.Repo == nil {
		return []StoredFile{}, nil
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	out, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list uploads: %v", ErrStorage, err)
	}
	return out, nil
}

func (s *Service) discard(ctx context.Context, key, reason string) {
	// The request context may already be cancelled; cleanup must still run.
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Error("upload.cleanup_failed", map[string]any{"key": key, "reason": reason, "error": err})
	}
}

// publish notifies downstream consumers. Failures are logged only.
func (s *Service) publish(ctx context.Context, evt queue.Event) {
	if s.Events == nil {
		return
	}
	evt.OccurredAt = s.Now().UTC().Format(time.RFC3339)
	if err := s.Events.Send(context.WithoutCancel(ctx), evt); err != nil {
		telemetry.Error("files.event_failed", map[string]any{"type": evt.Type, "path": evt.FilePath, "error": err})
	}
}

func categoryOfKey(key string) string {
	dir, _, ok := strings.Cut(key, "/")
	if !ok {
		return ""
	}
	for c, d := range categoryDirs {
		if d == dir {
			return string(c)
		}
	}
	return ""
}
