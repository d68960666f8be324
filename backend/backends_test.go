package backend_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/backend/local"
	"github.com/mwantia/remotedisk/backend/memory"
	"github.com/mwantia/remotedisk/backend/sqlite"
	"github.com/mwantia/remotedisk/backend/web"
	"github.com/mwantia/remotedisk/data"
)

// ObjectStore is the common surface the offline backends share for tests.
type ObjectStore interface {
	backend.RemoteBackend
	PutObject(ctx context.Context, path string, content []byte) error
	StatObject(ctx context.Context, path string) (int64, error)
}

// TestBackendFactory creates a new backend instance for testing.
type TestBackendFactory func(t *testing.T) (ObjectStore, error)

// GetTestBackendFactories returns the backend implementations that run
// without external services.
func GetTestBackendFactories() map[string]TestBackendFactory {
	return map[string]TestBackendFactory{
		"memory": func(t *testing.T) (ObjectStore, error) {
			return memory.NewMemoryBackend(), nil
		},
		"sqlite": func(t *testing.T) (ObjectStore, error) {
			return sqlite.NewSQLiteBackend(":memory:")
		},
		"local": func(t *testing.T) (ObjectStore, error) {
			return local.NewLocalBackend(t.TempDir()), nil
		},
	}
}

// TestAllBackends_ObjectLifecycle verifies put, stat and batched removal
// across all offline backend implementations.
func TestAllBackends_ObjectLifecycle(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			store, err := factory(t)
			if err != nil {
				t.Fatalf("Backend init failed: %v", err)
			}

			if err := store.Open(ctx); err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer store.Close(ctx)

			caps := store.GetCapabilities()
			if !caps.Contains(backend.CapabilityBatchDelete) {
				t.Fatal("Backend must support batch deletion")
			}
			if caps.ChunkLimit < 1 {
				t.Fatalf("Invalid chunk limit %d", caps.ChunkLimit)
			}

			// Store a handful of objects.
			keys := make([]string, 0, 5)
			for i := 0; i < 5; i++ {
				key := fmt.Sprintf("store/obj-%d", i)
				if err := store.PutObject(ctx, key, []byte("content")); err != nil {
					t.Fatalf("PutObject failed: %v", err)
				}
				keys = append(keys, key)
			}

			size, err := store.StatObject(ctx, keys[0])
			if err != nil {
				t.Fatalf("StatObject failed: %v", err)
			}
			if size != int64(len("content")) {
				t.Errorf("Expected size %d, got %d", len("content"), size)
			}

			if _, err := store.StatObject(ctx, "store/absent"); !errors.Is(err, data.ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}

			// Remove everything through the keeper.
			keeper, err := store.CreatePathKeeper()
			if err != nil {
				t.Fatalf("CreatePathKeeper failed: %v", err)
			}
			for _, key := range keys {
				keeper.AddPath(key)
			}

			if err := store.RemoveFromRemote(ctx, keeper); err != nil {
				t.Fatalf("RemoveFromRemote failed: %v", err)
			}

			for _, key := range keys {
				if _, err := store.StatObject(ctx, key); !errors.Is(err, data.ErrNotFound) {
					t.Errorf("Expected %s to be gone, got %v", key, err)
				}
			}
		})
	}
}

// TestWebBackend_RemovalUnsupported verifies the read-only backend's
// default behaviour.
func TestWebBackend_RemovalUnsupported(t *testing.T) {
	wb := web.NewWebBackend("http://static")

	if _, err := wb.CreatePathKeeper(); !errors.Is(err, data.ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported from CreatePathKeeper, got %v", err)
	}

	if err := wb.RemoveFromRemote(context.Background(), backend.NewPathKeeper(1)); !errors.Is(err, data.ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported from RemoveFromRemote, got %v", err)
	}

	if wb.GetCapabilities().Contains(backend.CapabilityBatchDelete) {
		t.Error("Read-only backend must not advertise batch deletion")
	}
}
