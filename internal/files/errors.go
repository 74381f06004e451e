package files

import "errors"

var (
	ErrNoFile          = errors.New("no file uploaded")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidPath     = errors.New("invalid file path")
	ErrAccessDenied    = errors.New("access denied")
	ErrNotFound        = errors.New("file not found")
	ErrStorage         = errors.New("storage error")
)

// UnsupportedTypeError carries the category whose allow-list rejected an upload.
type UnsupportedTypeError struct {
	Category Category
}

func (e *UnsupportedTypeError) Error() string {
	return ErrUnsupportedType.Error() + ": allowed types are " + e.Category.AllowedDescription()
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }
