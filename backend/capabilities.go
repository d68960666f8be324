package backend

import "slices"

type BackendCapability string

const (
	// Core capabilities by backend
	CapabilityObjectStorage BackendCapability = "object_storage"
	CapabilityBatchDelete   BackendCapability = "batch_delete"

	// Extension capabilities
	CapabilityReadOnly   BackendCapability = "read_only"
	CapabilityListing    BackendCapability = "listing"
	CapabilityVersioning BackendCapability = "versioning"
)

// BackendCapabilities describes what a backend supports
type BackendCapabilities struct {
	Capabilities []BackendCapability `json:"capabilities"`

	// ChunkLimit is the maximum number of object paths a single
	// batched delete call may cover. Zero means batch deletion
	// is unsupported.
	ChunkLimit int `json:"chunk_limit"`

	MaxObjectSize int64 `json:"max_object_size"`
}

// Contains checks if a capability is supported
func (bc *BackendCapabilities) Contains(cap BackendCapability) bool {
	return slices.Contains(bc.Capabilities, cap)
}
