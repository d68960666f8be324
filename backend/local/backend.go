package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/data"
)

// DefaultChunkLimit bounds a single batched delete on the local backend.
// Deletes are plain unlinks, so the limit only caps work per call.
const DefaultChunkLimit = 1000

// LocalBackend stores remote objects as plain files under a root
// directory. Intended for development and testing; it gives the disk layer
// a "remote" it can exercise without a network.
type LocalBackend struct {
	mu   sync.RWMutex
	path string
}

func NewLocalBackend(path string) *LocalBackend {
	return &LocalBackend{
		path: filepath.Clean(path),
	}
}

// Name returns the identifier name defined for this backend
func (*LocalBackend) Name() string {
	return "local"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	info, err := os.Stat(lb.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.MkdirAll(lb.path, 0755)
		}
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", data.ErrNotDirectory, lb.path)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (lb *LocalBackend) Close(ctx context.Context) error {
	// The underlying filesystem persists independently
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (lb *LocalBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityBatchDelete,
		},
		ChunkLimit: DefaultChunkLimit,
	}
}

// resolvePath joins the backend root with an object path.
func (lb *LocalBackend) resolvePath(path string) string {
	return filepath.Join(lb.path, filepath.FromSlash(path))
}

// PutObject stores an object as a file, creating parent directories as
// needed.
func (lb *LocalBackend) PutObject(ctx context.Context, path string, content []byte) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	full := lb.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}

	return os.WriteFile(full, content, 0644)
}

// StatObject returns the stored size of an object.
func (lb *LocalBackend) StatObject(ctx context.Context, path string) (int64, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	info, err := os.Stat(lb.resolvePath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", data.ErrNotFound, path)
		}
		return 0, err
	}

	return info.Size(), nil
}

// CreatePathKeeper returns a keeper bounded by this backend's chunk limit.
func (lb *LocalBackend) CreatePathKeeper() (*backend.PathKeeper, error) {
	return backend.NewPathKeeper(DefaultChunkLimit), nil
}

// RemoveFromRemote unlinks every accumulated object file. Missing objects
// are ignored so a retried batch stays idempotent.
func (lb *LocalBackend) RemoveFromRemote(ctx context.Context, keeper *backend.PathKeeper) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for _, chunk := range keeper.Chunks() {
		for _, path := range chunk {
			if err := os.Remove(lb.resolvePath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to remove object %s: %w", path, err)
			}
		}
	}

	return nil
}
