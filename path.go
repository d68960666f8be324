package remotedisk

import (
	"path"
	"strings"
)

// CleanPath normalizes a disk-relative logical path.
// Leading slashes and dot segments are removed so that "/a/./b" and "a/b"
// address the same metadata file.
func CleanPath(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// JoinPath joins logical path segments and normalizes the result.
func JoinPath(segments ...string) string {
	return CleanPath(path.Join(segments...))
}

// hasPathPrefix checks if p lives under prefix.
// Both paths should be cleaned before calling.
func hasPathPrefix(p, prefix string) bool {
	// Root matches everything
	if prefix == "" {
		return true
	}

	// Exact match
	if p == prefix {
		return true
	}

	return strings.HasPrefix(p, prefix+"/")
}
