package files

import (
	"context"
	"database/sql"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, f StoredFile) error {
	const query = `
INSERT INTO stored_files (id, category, file_name, original_name, relative_path, size_bytes, mime_type, detected_mime_type, storage_provider, uploaded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, query,
		f.ID,
		string(f.Category),
		f.FileName,
		f.OriginalName,
		f.RelativePath,
		f.SizeBytes,
		f.MimeType,
		nullableString(f.DetectedMimeType),
		f.StorageProvider,
		nullableString(f.UploadedBy),
		createdAt,
	)
	return err
}

func (r *PGRepo) MarkDeleted(ctx context.Context, relativePath string, at time.Time) (bool, error) {
	const query = `
UPDATE stored_files
SET deleted_at = $2
WHERE relative_path = $1 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, relativePath, at.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]StoredFile, error) {
	const query = `
SELECT id, category, file_name, original_name, relative_path, size_bytes, mime_type, detected_mime_type, storage_provider, uploaded_by, created_at
FROM stored_files
WHERE deleted_at IS NULL AND ($1 = '' OR category = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, string(filter.Category), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StoredFile{}
	for rows.Next() {
		var f StoredFile
		var category string
		var detected sql.NullString
		var uploadedBy sql.NullString
		if err := rows.Scan(
			&f.ID,
			&category,
			&f.FileName,
			&f.OriginalName,
			&f.RelativePath,
			&f.SizeBytes,
			&f.MimeType,
			&detected,
			&f.StorageProvider,
			&uploadedBy,
			&f.CreatedAt,
		); err != nil {
			return nil, err
		}
		f.Category = Category(category)
		if detected.Valid {
			f.DetectedMimeType = detected.String
		}
		if uploadedBy.Valid {
			f.UploadedBy = uploadedBy.String
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
