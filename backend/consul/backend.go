package consul

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/data"
)

// ChunkLimit is the Consul transaction operation cap.
const ChunkLimit = 64

// ConsulBackend stores remote objects in the HashiCorp Consul KV store.
// Each keeper chunk is removed through a single KV transaction, so a chunk
// either disappears completely or not at all.
//
// Consul KV caps values at 512KB, which suits this layer: the disk above
// only ever hands it small objects, never streams.
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV

	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Prefix for all keys in Consul KV (optional)
	Prefix string
}

func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	// Nothing to initialize - Consul handles connections
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityBatchDelete,
		},
		ChunkLimit: ChunkLimit,
		// Consul KV caps values at 512KB; keep headroom for encoding
		MaxObjectSize: 500 * 1024,
	}
}

// buildKey prefixes an object path for the KV store.
func (cb *ConsulBackend) buildKey(path string) string {
	if cb.config.Prefix == "" {
		return strings.TrimPrefix(path, "/")
	}

	return strings.TrimSuffix(cb.config.Prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}

// PutObject stores an object under the given path.
func (cb *ConsulBackend) PutObject(ctx context.Context, path string, content []byte) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	pair := &api.KVPair{
		Key:   cb.buildKey(path),
		Value: content,
	}

	if _, err := cb.kv.Put(pair, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return err
	}

	return nil
}

// StatObject returns the stored size of an object.
func (cb *ConsulBackend) StatObject(ctx context.Context, path string) (int64, error) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	pair, _, err := cb.kv.Get(cb.buildKey(path), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return 0, err
	}

	if pair == nil {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, path)
	}

	return int64(len(pair.Value)), nil
}

// CreatePathKeeper returns a keeper bounded by the transaction op cap.
func (cb *ConsulBackend) CreatePathKeeper() (*backend.PathKeeper, error) {
	return backend.NewPathKeeper(ChunkLimit), nil
}

// RemoveFromRemote deletes every accumulated object, one KV transaction
// per chunk.
func (cb *ConsulBackend) RemoveFromRemote(ctx context.Context, keeper *backend.PathKeeper) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	for _, chunk := range keeper.Chunks() {
		ops := make(api.KVTxnOps, 0, len(chunk))
		for _, path := range chunk {
			ops = append(ops, &api.KVTxnOp{
				Verb: api.KVDelete,
				Key:  cb.buildKey(path),
			})
		}

		ok, resp, _, err := cb.kv.Txn(ops, (&api.QueryOptions{}).WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to delete %d objects: %w", len(chunk), err)
		}

		if !ok {
			var errs data.Errors
			for _, txnErr := range resp.Errors {
				errs.Add(fmt.Errorf("failed to delete object: %s", txnErr.What))
			}
			return errs.Errors()
		}
	}

	return nil
}
