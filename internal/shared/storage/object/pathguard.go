package object

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Confine joins candidate onto root and verifies the result lies strictly
// inside root. It is purely lexical: absolute candidates, NUL bytes, ".."
// escapes and the root itself are rejected with ErrOutsideRoot. Backslashes
// are treated as separators.
func Confine(root, candidate string) (string, error) {
	if strings.ContainsRune(candidate, 0) {
		return "", fmt.Errorf("%w: invalid character", ErrOutsideRoot)
	}
	candidate = strings.ReplaceAll(candidate, "\\", "/")
	if candidate == "" || strings.HasPrefix(candidate, "/") || filepath.IsAbs(candidate) || filepath.VolumeName(candidate) != "" {
		return "", ErrOutsideRoot
	}

	root = filepath.Clean(root)
	full := filepath.Join(root, filepath.FromSlash(candidate))
	if !within(root, full) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// Resolve is Confine followed by a symlink check: the deepest existing
// ancestor of the target, or the target itself, must still resolve inside
// the real root.
func Resolve(root, candidate string) (string, error) {
	full, err := Confine(root, candidate)
	if err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	candidatePath := full
	for {
		real, err := filepath.EvalSymlinks(candidatePath)
		if err == nil {
			if candidatePath == full {
				if !within(realRoot, real) {
					return "", ErrOutsideRoot
				}
			} else if real != realRoot && !within(realRoot, real) {
				return "", ErrOutsideRoot
			}
			return full, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(candidatePath)
		if parent == candidatePath || !strings.HasPrefix(parent, filepath.Clean(root)) {
			return full, nil
		}
		candidatePath = parent
	}
}

// CleanKey is the lexical key check for backends without a filesystem. It
// returns the canonical slash-separated key.
func CleanKey(candidate string) (string, error) {
	if strings.ContainsRune(candidate, 0) {
		return "", fmt.Errorf("%w: invalid character", ErrOutsideRoot)
	}
	candidate = strings.ReplaceAll(candidate, "\\", "/")
	if candidate == "" || strings.HasPrefix(candidate, "/") {
		return "", ErrOutsideRoot
	}
	clean := path.Clean(candidate)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrOutsideRoot
	}
	return clean, nil
}

// within reports whether target is strictly below root.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
