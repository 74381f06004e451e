package util

import (
	"path"
	"strings"
)

const (
	maxTagLen = 32
	maxExtLen = 10
)

// SanitizeTag lowercases s and keeps only [a-z0-9_-], truncated to 32 runes.
// An empty result becomes fallback.
func SanitizeTag(s, fallback string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if b.Len() >= maxTagLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// FileExt returns the lowercased extension of name including the dot, or ""
// when the extension is missing, too long, or carries unexpected characters.
func FileExt(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	ext := strings.ToLower(path.Ext(path.Base(name)))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

// SanitizeFileName strips directory components from a client supplied name
// so it is safe to echo back or store as metadata.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := strings.TrimSpace(path.Base(name))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return strings.ReplaceAll(base, "\x00", "")
}
