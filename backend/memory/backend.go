package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/data"
	"github.com/tidwall/btree"
)

// DefaultChunkLimit bounds a single batched delete on the memory backend.
// Kept small so tests exercise chunk splitting with few objects.
const DefaultChunkLimit = 32

// MemoryBackend stores remote objects in an ordered in-memory map.
// It records every batched delete invocation so tests can assert how many
// backend calls a disk operation produced.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects *btree.Map[string, []byte]

	chunkLimit int
	removals   [][]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects:    btree.NewMap[string, []byte](0),
		chunkLimit: DefaultChunkLimit,
	}
}

// NewMemoryBackendWithChunkLimit creates a memory backend with a custom
// batch size bound.
func NewMemoryBackendWithChunkLimit(chunkLimit int) *MemoryBackend {
	mb := NewMemoryBackend()
	mb.chunkLimit = chunkLimit

	return mb
}

// Name returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.objects = btree.NewMap[string, []byte](0)
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityBatchDelete,
			backend.CapabilityListing,
		},
		ChunkLimit: mb.chunkLimit,
	}
}

// PutObject stores an object under the given path.
func (mb *MemoryBackend) PutObject(ctx context.Context, path string, content []byte) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	buf := make([]byte, len(content))
	copy(buf, content)
	mb.objects.Set(path, buf)

	return nil
}

// StatObject returns the stored size of an object.
func (mb *MemoryBackend) StatObject(ctx context.Context, path string) (int64, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	content, ok := mb.objects.Get(path)
	if !ok {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, path)
	}

	return int64(len(content)), nil
}

// ListObjects returns every stored object path with the given prefix, in
// lexical order.
func (mb *MemoryBackend) ListObjects(ctx context.Context, prefix string) []string {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	var paths []string
	mb.objects.Ascend(prefix, func(path string, _ []byte) bool {
		if len(path) < len(prefix) || path[:len(prefix)] != prefix {
			return false
		}

		paths = append(paths, path)
		return true
	})

	return paths
}

// CreatePathKeeper returns a keeper bounded by this backend's chunk limit.
func (mb *MemoryBackend) CreatePathKeeper() (*backend.PathKeeper, error) {
	return backend.NewPathKeeper(mb.chunkLimit), nil
}

// RemoveFromRemote deletes every accumulated object and records the
// invocation for inspection through Removals.
func (mb *MemoryBackend) RemoveFromRemote(ctx context.Context, keeper *backend.PathKeeper) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	var removed []string
	for _, chunk := range keeper.Chunks() {
		for _, path := range chunk {
			mb.objects.Delete(path)
			removed = append(removed, path)
		}
	}

	mb.removals = append(mb.removals, removed)
	return nil
}

// Removals returns one entry per RemoveFromRemote invocation, each listing
// the paths that invocation covered.
func (mb *MemoryBackend) Removals() [][]string {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return mb.removals
}

// ObjectCount returns the number of stored objects.
func (mb *MemoryBackend) ObjectCount() int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return mb.objects.Len()
}
