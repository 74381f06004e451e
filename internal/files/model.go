package files

import (
	"io"
	"time"
)

// StoredFile is the ledger record of one accepted upload.
type StoredFile struct {
	ID               string     `json:"id"`
	Category         Category   `json:"category"`
	FileName         string     `json:"fileName"`
	OriginalName     string     `json:"originalName"`
	RelativePath     string     `json:"filePath"`
	SizeBytes        int64      `json:"fileSize"`
	MimeType         string     `json:"fileType"`
	DetectedMimeType string     `json:"detectedType,omitempty"`
	StorageProvider  string     `json:"storageProvider"`
	UploadedBy       string     `json:"uploadedBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
}

// UploadInput carries one multipart file into the service.
type UploadInput struct {
	Type         string
	OriginalName string
	MimeType     string
	// Size is the declared size; negative when unknown.
	Size       int64
	Body       io.Reader
	UploadedBy string
}

// Download is an opened stored file. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	Path        string
}

type DeleteResult struct {
	Path    string
	Existed bool
}

// ListFilter pages through the ledger, newest first.
type ListFilter struct {
	Category Category
	Limit    int
	Offset   int
}
