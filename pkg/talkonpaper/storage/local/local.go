// Package local serves media from a directory on disk behind HMAC-signed,
// expiring URLs. It stands in for object storage during development.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
)

// ErrInvalidKey is returned for keys that would escape the media directory.
var ErrInvalidKey = errors.New("local: invalid object key")

// Config options for the local backend
type Config struct {
	BaseDir   string // Directory holding one sub-directory per bucket
	URLPrefix string // Route the serving handler is mounted on (default: /media)
	SecretKey string // HMAC key for signed URLs
	BaseURL   string // Optional absolute origin prepended to signed paths
}

// Backend implements media.Signer over the local filesystem.
type Backend struct {
	baseDir   string
	urlPrefix string
	baseURL   string
	signer    *urlSigner
}

var _ media.Signer = (*Backend)(nil)

// New creates a local backend, creating BaseDir when needed.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.SecretKey == "" {
		return nil, ErrNoSecretKey
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	prefix := config.URLPrefix
	if prefix == "" {
		prefix = "/media"
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: "/" + strings.Trim(prefix, "/"),
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		signer:    &urlSigner{secretKey: []byte(config.SecretKey), now: time.Now},
	}, nil
}

// URLPrefix returns the route the serving handler expects to be mounted on.
func (b *Backend) URLPrefix() string {
	return b.urlPrefix
}

// PresignGet returns a signed path for bucket/key. The object does not need
// to exist yet.
func (b *Backend) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if _, err := b.filePath(bucket, key); err != nil {
		return "", err
	}
	signed, err := b.signer.sign(b.objectPath(bucket, key), ttl)
	if err != nil {
		return "", err
	}
	return b.baseURL + signed, nil
}

// Head stats the object file.
func (b *Backend) Head(ctx context.Context, bucket, key string) (*media.ObjectInfo, error) {
	p, err := b.filePath(bucket, key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil, media.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if info.IsDir() {
		return nil, media.ErrObjectNotFound
	}

	return &media.ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		ContentType:  contentType(p),
		LastModified: info.ModTime().UTC(),
	}, nil
}

// Upload writes reader to bucket/key, replacing any existing file.
func (b *Backend) Upload(ctx context.Context, bucket, key string, reader io.Reader) error {
	p, err := b.filePath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tmp.Name(), p)
}

// BucketUploader binds Upload to one bucket so the backend satisfies
// media.Uploader. Content type is derived from the key when served.
type BucketUploader struct {
	backend *Backend
	bucket  string
}

var _ media.Uploader = (*BucketUploader)(nil)

func (b *Backend) Uploader(bucket string) *BucketUploader {
	return &BucketUploader{backend: b, bucket: bucket}
}

func (u *BucketUploader) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	return u.backend.Upload(ctx, u.bucket, key, reader)
}

// Handler serves objects for requests carrying a valid signature. Mount it
// on URLPrefix.
func (b *Backend) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := b.signer.validate(r.Method, r.URL.Path, r.URL.Query()); err != nil {
			switch {
			case errors.Is(err, ErrExpired):
				http.Error(w, "Signed URL has expired", http.StatusForbidden)
			case IsAuthError(err):
				http.Error(w, "Invalid signature", http.StatusForbidden)
			default:
				http.Error(w, "Media unavailable", http.StatusServiceUnavailable)
			}
			return
		}

		rel := strings.TrimPrefix(r.URL.Path, b.urlPrefix+"/")
		bucket, key, ok := strings.Cut(rel, "/")
		if !ok {
			http.NotFound(w, r)
			return
		}
		p, err := b.filePath(bucket, key)
		if err != nil {
			http.Error(w, "Invalid object key", http.StatusBadRequest)
			return
		}

		f, err := os.Open(p)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", contentType(p))
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

func (b *Backend) objectPath(bucket, key string) string {
	return path.Join(b.urlPrefix, bucket, key)
}

func (b *Backend) filePath(bucket, key string) (string, error) {
	if bucket == "" || key == "" || strings.Contains(bucket, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", ErrInvalidKey
	}
	return filepath.Join(b.baseDir, bucket, filepath.FromSlash(clean[1:])), nil
}

// mediaTypes covers extensions the platform mime table may not know.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".vtt":  "text/vtt",
}

func contentType(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
