package remotedisk

import "os"

// DirectoryIterator walks the entries of a single local metadata directory,
// translating them into logical path names.
type DirectoryIterator struct {
	folderPath string
	entries    []os.DirEntry
	index      int
}

// Next advances to the following entry.
func (it *DirectoryIterator) Next() {
	it.index++
}

// IsValid reports whether the iterator still points at an entry.
func (it *DirectoryIterator) IsValid() bool {
	return it.index < len(it.entries)
}

// Path returns the full logical path of the current entry. Directory
// entries carry a trailing separator so callers can distinguish files from
// directories without an extra lookup.
func (it *DirectoryIterator) Path() string {
	entry := it.entries[it.index]
	p := JoinPath(it.folderPath, entry.Name())

	if entry.IsDir() {
		return p + "/"
	}

	return p
}

// Name returns the bare entry name.
func (it *DirectoryIterator) Name() string {
	return it.entries[it.index].Name()
}
