package data

import (
	"errors"
	"sync"
)

// Standard errors returned by the disk layer and its backends.
var (
	// Metadata errors
	ErrNotFound          = errors.New("remotedisk: metadata file not found")
	ErrCorruptedMetadata = errors.New("remotedisk: corrupted metadata file")
	ErrUnknownVersion    = errors.New("remotedisk: unknown metadata format version")
	ErrReadOnly          = errors.New("remotedisk: metadata file is read-only")

	// Path shape errors
	ErrInvalidPath       = errors.New("remotedisk: invalid path")
	ErrExist             = errors.New("remotedisk: path already exists")
	ErrNotFile           = errors.New("remotedisk: path is not a file")
	ErrNotDirectory      = errors.New("remotedisk: path is not a directory")
	ErrDirectoryNotEmpty = errors.New("remotedisk: directory not empty")

	// Backend errors
	ErrNotSupported = errors.New("remotedisk: operation not supported by backend")
	ErrRemoteDelete = errors.New("remotedisk: remote batch delete failed")

	// Executor errors
	ErrExecutorQueueFull = errors.New("remotedisk: executor queue full")
	ErrExecutorStopped   = errors.New("remotedisk: executor stopped")
)

// Errors collects failures across a multi-part operation, such as the
// per-object results of a batched remote delete.
type Errors struct {
	mu     sync.Mutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
