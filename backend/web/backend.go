package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/data"
)

// WebBackend serves remote objects from a read-only static HTTP server.
// It cannot remove anything; the embedded UnsupportedRemove makes every
// removal attempt fail with data.ErrNotSupported, which a disk surfaces to
// callers trying to delete.
type WebBackend struct {
	backend.UnsupportedRemove

	baseURL string
	client  *http.Client
}

func NewWebBackend(baseURL string) *WebBackend {
	return &WebBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Name returns the identifier name defined for this backend
func (*WebBackend) Name() string {
	return "web"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (wb *WebBackend) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, wb.baseURL+"/", nil)
	if err != nil {
		return err
	}

	resp, err := wb.client.Do(req)
	if err != nil {
		return fmt.Errorf("static server unreachable: %w", err)
	}
	resp.Body.Close()

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (wb *WebBackend) Close(ctx context.Context) error {
	wb.client.CloseIdleConnections()
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (wb *WebBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityReadOnly,
		},
	}
}

// StatObject returns the served size of an object via a HEAD request.
func (wb *WebBackend) StatObject(ctx context.Context, path string) (int64, error) {
	url := wb.baseURL + "/" + strings.TrimPrefix(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := wb.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, path)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s for %s", resp.Status, path)
	}

	return resp.ContentLength, nil
}
