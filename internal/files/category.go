package files

import "strings"

// Category is the closed set of storage buckets an upload can land in.
type Category string

const (
	CategoryEmployee  Category = "employee"
	CategoryDocument  Category = "document"
	CategoryStatement Category = "statement"
	CategorySeizure   Category = "seizure"
	CategoryMisc      Category = "misc"
)

var categoryDirs = map[Category]string{
	CategoryEmployee:  "employees",
	CategoryDocument:  "documents",
	CategoryStatement: "statements",
	CategorySeizure:   "seizures",
	CategoryMisc:      "misc",
}

var imageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

var statementTypes = append([]string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}, imageTypes...)

// CategoryFor maps the free-form type tag of an upload to its category.
// Unrecognized tags fall back to misc.
func CategoryFor(tag string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(tag)))
	if _, ok := categoryDirs[c]; ok {
		return c
	}
	return CategoryMisc
}

// ParseCategory is the strict variant used by list filters.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := categoryDirs[c]
	return c, ok
}

// Dir is the subdirectory of the storage root holding this category.
func (c Category) Dir() string {
	if dir, ok := categoryDirs[c]; ok {
		return dir
	}
	return categoryDirs[CategoryMisc]
}

// isCategoryDir reports whether key names a category directory itself
// rather than a stored file.
func isCategoryDir(key string) bool {
	key = strings.Trim(strings.ReplaceAll(key, "\\", "/"), "/")
	for _, dir := range categoryDirs {
		if key == dir {
			return true
		}
	}
	return false
}

// AllowedMimeTypes lists the declared content types accepted for c.
func (c Category) AllowedMimeTypes() []string {
	if c == CategoryStatement {
		return statementTypes
	}
	return imageTypes
}

// Allows reports whether a declared content type is accepted for c.
func (c Category) Allows(mimeType string) bool {
	mimeType = baseMimeType(mimeType)
	for _, t := range c.AllowedMimeTypes() {
		if t == mimeType {
			return true
		}
	}
	return false
}

// AllowedDescription is a human readable list of accepted formats.
func (c Category) AllowedDescription() string {
	if c == CategoryStatement {
		return "PDF, DOC, DOCX, TXT, JPEG, PNG, GIF and WebP"
	}
	return "JPEG, PNG, GIF and WebP"
}

func baseMimeType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
