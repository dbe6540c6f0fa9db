package diagfmt

import (
	"path/filepath"
	"strings"
)

func formatPath(path string, mode PathMode, base string) string {
	if path == "" {
		return ""
	}
	switch mode {
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeAbsolute:
		if filepath.IsAbs(path) || base == "" {
			return filepath.Clean(path)
		}
		return filepath.Join(base, path)
	case PathModeRelative:
		return relativeTo(path, base)
	default:
		rel := relativeTo(path, base)
		if strings.HasPrefix(rel, "..") {
			return path
		}
		return rel
	}
}

func relativeTo(path, base string) string {
	if base == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
