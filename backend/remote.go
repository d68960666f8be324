package backend

import (
	"context"
	"fmt"

	"github.com/mwantia/remotedisk/data"
)

// RemoteBackend is the contract a concrete remote filesystem implementation
// must satisfy so a disk can delete objects that are no longer referenced
// by any metadata file.
//
// Backends that cannot remove objects (read-only static servers) embed
// UnsupportedRemove instead of implementing the two methods themselves.
type RemoteBackend interface {
	Backend

	// CreatePathKeeper returns a keeper configured with this backend's
	// chunk limit.
	CreatePathKeeper() (*PathKeeper, error)

	// RemoveFromRemote issues one backend delete call per accumulated
	// chunk, covering every path added to the keeper.
	RemoveFromRemote(ctx context.Context, keeper *PathKeeper) error
}

// UnsupportedRemove provides the default behaviour for backends that do not
// support batched remote deletion.
type UnsupportedRemove struct{}

func (UnsupportedRemove) CreatePathKeeper() (*PathKeeper, error) {
	return nil, fmt.Errorf("%w: path keeper", data.ErrNotSupported)
}

func (UnsupportedRemove) RemoveFromRemote(ctx context.Context, keeper *PathKeeper) error {
	return fmt.Errorf("%w: remote removal", data.ErrNotSupported)
}
