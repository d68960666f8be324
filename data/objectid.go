package data

import (
	"strings"

	"github.com/google/uuid"
)

// NewObjectID generates a fresh identifier for a remote object.
// Identifiers are time-ordered so object listings on prefix-organized
// backends stay roughly chronological.
func NewObjectID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// JoinObjectPath joins a remote root with a root-relative object id.
// Remote roots are URI-like, so this never uses the local path separator.
func JoinObjectPath(root, id string) string {
	if root == "" {
		return id
	}

	return strings.TrimSuffix(root, "/") + "/" + id
}

// RelativeObjectPath strips the remote root from an absolute object path.
// Returns the path unchanged when it does not live under root.
func RelativeObjectPath(root, path string) string {
	if root == "" {
		return path
	}

	rel := strings.TrimPrefix(path, strings.TrimSuffix(root, "/"))
	return strings.TrimPrefix(rel, "/")
}
