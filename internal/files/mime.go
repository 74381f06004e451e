package files

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const sniffLen = 512

var contentTypesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// ContentTypeFor infers the response content type from a stored file name.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypesByExt[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// sniff detects the content type of the leading bytes of an upload.
func sniff(head []byte) *mimetype.MIME {
	return mimetype.Detect(head)
}
