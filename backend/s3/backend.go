package s3

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/data"
)

// ChunkLimit is the S3 DeleteObjects request cap.
const ChunkLimit = 1000

// S3Backend stores remote objects in an S3 bucket and removes released
// objects through the bulk DeleteObjects API, one call per keeper chunk.
type S3Backend struct {
	mu sync.RWMutex

	client     *minio.Client
	bucketName string
}

func NewS3Backend(endpoint, bucketName, accessKey, secretKey string, useSsl bool) (*S3Backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSsl,
	})
	if err != nil {
		return nil, err
	}

	return &S3Backend{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	exists, err := sb.client.BucketExists(ctx, sb.bucketName)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: bucket %s", data.ErrNotFound, sb.bucketName)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityBatchDelete,
			backend.CapabilityListing,
			backend.CapabilityVersioning,
		},
		ChunkLimit: ChunkLimit,
	}
}

// PutObject uploads an object under the given key.
func (sb *S3Backend) PutObject(ctx context.Context, key string, content []byte) error {
	_, err := sb.client.PutObject(ctx, sb.bucketName, key,
		bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{})
	return err
}

// StatObject returns the stored size of an object.
func (sb *S3Backend) StatObject(ctx context.Context, key string) (int64, error) {
	objInfo, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return 0, fmt.Errorf("%w: %s", data.ErrNotFound, key)
		}
		return 0, err
	}

	return objInfo.Size, nil
}

// CreatePathKeeper returns a keeper bounded by the DeleteObjects cap.
func (sb *S3Backend) CreatePathKeeper() (*backend.PathKeeper, error) {
	return backend.NewPathKeeper(ChunkLimit), nil
}

// RemoveFromRemote issues one DeleteObjects call per accumulated chunk.
// Per-object delete errors within a chunk are collected and returned
// together; remaining chunks are still attempted.
func (sb *S3Backend) RemoveFromRemote(ctx context.Context, keeper *backend.PathKeeper) error {
	var errs data.Errors

	for _, chunk := range keeper.Chunks() {
		objectsCh := make(chan minio.ObjectInfo, len(chunk))
		for _, key := range chunk {
			objectsCh <- minio.ObjectInfo{Key: key}
		}
		close(objectsCh)

		for result := range sb.client.RemoveObjects(ctx, sb.bucketName, objectsCh, minio.RemoveObjectsOptions{}) {
			if result.Err != nil {
				errs.Add(fmt.Errorf("failed to remove object %s: %w", result.ObjectName, result.Err))
			}
		}
	}

	return errs.Errors()
}
