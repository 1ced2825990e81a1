// Package r2 implements media.Signer on top of an S3-compatible object store
// such as Cloudflare R2 or MinIO.
package r2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
)

// ErrMissingCredentials is returned by every call when no access key pair is
// configured and the default credential chain is disabled.
var ErrMissingCredentials = errors.New("r2: access key id and secret access key are required")

// Config options for the R2 backend
type Config struct {
	Endpoint        string // Account endpoint, e.g. https://<account>.r2.cloudflarestorage.com
	Region          string // "auto" for R2
	Bucket          string // Default bucket
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool // Path-style addressing, required by MinIO
	PresignDuration int  // Seconds, used when a caller passes no TTL (default: 900)

	// UseDefaultCredentialChain falls back to the AWS credential chain when
	// no static keys are configured.
	UseDefaultCredentialChain bool
}

// Backend signs and uploads objects in an S3-compatible bucket.
type Backend struct {
	client          *s3.Client
	presignClient   *s3.PresignClient
	bucket          string
	presignDuration time.Duration
	hasCredentials  bool
}

var (
	_ media.Signer   = (*Backend)(nil)
	_ media.Uploader = (*Backend)(nil)
)

// New creates a new R2 backend. No network calls are made.
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "auto"
	}
	if config.PresignDuration <= 0 {
		config.PresignDuration = 900
	}

	staticKeys := config.AccessKeyID != "" && config.SecretAccessKey != ""

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if staticKeys {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	return &Backend{
		client:          client,
		presignClient:   s3.NewPresignClient(client),
		bucket:          config.Bucket,
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		hasCredentials:  staticKeys || config.UseDefaultCredentialChain,
	}, nil
}

// Bucket returns the default bucket.
func (b *Backend) Bucket() string {
	return b.bucket
}

// PresignGet returns a presigned GET URL for bucket/key.
func (b *Backend) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if !b.hasCredentials {
		return "", ErrMissingCredentials
	}
	if ttl <= 0 {
		ttl = b.presignDuration
	}

	result, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketOr(bucket)),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", classify("presign", key, err)
	}

	return result.URL, nil
}

// Head retrieves metadata for bucket/key.
func (b *Backend) Head(ctx context.Context, bucket, key string) (*media.ObjectInfo, error) {
	if !b.hasCredentials {
		return nil, ErrMissingCredentials
	}

	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucketOr(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("head", key, err)
	}

	info := &media.ObjectInfo{
		Key:         key,
		ContentType: "application/octet-stream",
	}
	if result.ContentType != nil {
		info.ContentType = *result.ContentType
	}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}
	if result.ETag != nil {
		info.ETag = strings.Trim(*result.ETag, "\"")
	}

	return info, nil
}

// Upload streams reader into key in the default bucket.
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if !b.hasCredentials {
		return ErrMissingCredentials
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := manager.NewUploader(b.client).Upload(ctx, input); err != nil {
		return classify("upload", key, err)
	}
	return nil
}

func (b *Backend) bucketOr(bucket string) string {
	if bucket == "" {
		return b.bucket
	}
	return bucket
}

// classify maps SDK errors onto media errors, keeping the service error code
// in the message for operators.
func classify(op, key string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return &media.StorageError{Backend: "r2", Key: key, Op: op, Err: media.ErrObjectNotFound}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return &media.StorageError{Backend: "r2", Key: key, Op: op, Err: media.ErrObjectNotFound}
		}
		return &media.StorageError{Backend: "r2", Key: key, Op: op, Err: fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)}
	}

	return &media.StorageError{Backend: "r2", Key: key, Op: op, Err: err}
}
