package r2

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := New(Config{
		Endpoint:        "https://account.r2.cloudflarestorage.com",
		Bucket:          "talkonpaper-media",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	return backend
}

func TestR2Backend_Configuration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{AccessKeyID: "k", SecretAccessKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultPresignDuration", func(t *testing.T) {
		backend := newTestBackend(t)
		assert.Equal(t, 900*time.Second, backend.presignDuration)
		assert.Equal(t, "talkonpaper-media", backend.Bucket())
	})

	t.Run("CustomPresignDuration", func(t *testing.T) {
		backend, err := New(Config{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s", PresignDuration: 60})
		require.NoError(t, err)
		assert.Equal(t, time.Minute, backend.presignDuration)
	})
}

func TestR2Backend_PresignGet(t *testing.T) {
	backend := newTestBackend(t)

	signed, err := backend.PresignGet(context.Background(), "", "talks/adaptive-water.mp4", 900*time.Second)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "account.r2.cloudflarestorage.com", u.Host)
	assert.Equal(t, "/talkonpaper-media/talks/adaptive-water.mp4", u.Path)

	q := u.Query()
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.True(t, strings.HasPrefix(q.Get("X-Amz-Credential"), "test-key/"))
}

func TestR2Backend_PresignGetUsesExplicitBucket(t *testing.T) {
	backend := newTestBackend(t)

	signed, err := backend.PresignGet(context.Background(), "other-bucket", "a.mp4", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "/other-bucket/a.mp4")
	assert.Contains(t, signed, "X-Amz-Expires=60")
}

func TestR2Backend_PresignGetDefaultTTL(t *testing.T) {
	backend := newTestBackend(t)

	signed, err := backend.PresignGet(context.Background(), "", "a.mp4", 0)
	require.NoError(t, err)
	assert.Contains(t, signed, "X-Amz-Expires=900")
}

func TestR2Backend_MissingCredentials(t *testing.T) {
	backend, err := New(Config{Bucket: "b", Endpoint: "https://account.r2.cloudflarestorage.com"})
	require.NoError(t, err)

	_, err = backend.PresignGet(context.Background(), "", "a.mp4", 0)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = backend.Head(context.Background(), "", "a.mp4")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	err = backend.Upload(context.Background(), "a.mp4", strings.NewReader("x"), "video/mp4")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestR2Backend_MissingCredentialsMaskedByResolver(t *testing.T) {
	backend, err := New(Config{Bucket: "b"})
	require.NoError(t, err)

	resolver := media.New(backend, media.WithBucket("b"))
	url, ok := resolver.Resolve(context.Background(), "valid/key.mp4", 0)
	assert.False(t, ok)
	assert.Empty(t, url)
}

func TestClassify(t *testing.T) {
	t.Run("not found code", func(t *testing.T) {
		err := classify("head", "a.mp4", &smithy.GenericAPIError{Code: "NotFound", Message: "nope"})
		assert.ErrorIs(t, err, media.ErrObjectNotFound)

		var storageErr *media.StorageError
		require.True(t, errors.As(err, &storageErr))
		assert.Equal(t, "r2", storageErr.Backend)
		assert.Equal(t, "head", storageErr.Op)
		assert.Equal(t, "a.mp4", storageErr.Key)
	})

	t.Run("other code kept in message", func(t *testing.T) {
		err := classify("head", "a.mp4", &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"})
		assert.Contains(t, err.Error(), "AccessDenied")
		assert.False(t, errors.Is(err, media.ErrObjectNotFound))
	})

	t.Run("plain error wrapped", func(t *testing.T) {
		cause := errors.New("dial tcp: timeout")
		err := classify("presign", "a.mp4", cause)
		assert.ErrorIs(t, err, cause)
	})
}

// TestR2BackendWithMinIO exercises Head and Upload against a running MinIO.
// docker run -p 9000:9000 minio/minio server /data
func TestR2BackendWithMinIO(t *testing.T) {
	if os.Getenv("MINIO_INTEGRATION_TEST") == "" {
		t.Skip("Skipping MinIO integration test. Set MINIO_INTEGRATION_TEST=1 to run.")
	}

	backend, err := New(Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          os.Getenv("MINIO_BUCKET"),
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := "integration/" + time.Now().Format("20060102150405") + ".txt"
	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("hello"), "text/plain"))

	info, err := backend.Head(ctx, "", key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "text/plain", info.ContentType)

	_, err = backend.Head(ctx, "", key+".missing")
	assert.ErrorIs(t, err, media.ErrObjectNotFound)
}
