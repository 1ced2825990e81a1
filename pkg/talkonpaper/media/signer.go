package media

import (
	"context"
	"io"
	"time"
)

// Signer is the object-storage capability the resolver delegates to.
type Signer interface {
	// PresignGet returns a URL granting read access to bucket/key for ttl.
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)

	// Head returns metadata for bucket/key.
	Head(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}

// ObjectInfo is the metadata a Signer reports for an object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// Uploader writes an object into the default bucket.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}
