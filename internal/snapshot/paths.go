package snapshot

import (
	"path/filepath"
	"strings"
)

// NormalizePath returns the absolute, cleaned, slash-separated form of path.
// Location tags and the overlay host both key call sites by this form, so any
// spelling of the same file must normalise identically.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) && !isSlashAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))
}

// NativePath converts a normalised path back to the host separator
func NativePath(normalized string) string {
	return filepath.FromSlash(normalized)
}

// isSlashAbs accepts slash-rooted and drive-rooted paths written with forward
// slashes, which filepath.IsAbs rejects on some hosts.
func isSlashAbs(path string) bool {
	if strings.HasPrefix(path, "/") {
		return true
	}
	return len(path) > 2 && path[1] == ':' && (path[2] == '/' || path[2] == '\\')
}
