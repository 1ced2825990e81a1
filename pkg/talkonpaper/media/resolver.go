// Package media turns storage object keys into time-limited URLs.
//
// Every operation is fail-soft: a missing key, a missing signer or any
// failure reported by the signer produces an absent result instead of an
// error. Callers treat an absent URL as "media currently unavailable".
package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTTL is used when neither the caller nor the configuration supplies
// an expiry.
const DefaultTTL = 900 * time.Second

// Outcome classifies a single Resolve call.
type Outcome string

const (
	OutcomeSigned  Outcome = "signed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Meta is the display metadata for an object. The zero value means nothing
// could be fetched.
type Meta struct {
	Size         int64     `json:"size,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// IsZero reports whether no metadata was fetched.
func (m Meta) IsZero() bool {
	return m.Size == 0 && m.ContentType == "" && m.LastModified.IsZero()
}

// Resolver produces signed URLs for object keys in a single bucket.
type Resolver struct {
	signer     Signer
	bucket     string
	defaultTTL time.Duration
	logger     *slog.Logger
	observe    func(Outcome)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBucket sets the bucket every key is resolved in.
func WithBucket(bucket string) Option {
	return func(r *Resolver) {
		r.bucket = bucket
	}
}

// WithDefaultTTL sets the expiry used when Resolve is called without one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.defaultTTL = ttl
		}
	}
}

// WithLogger sets the logger failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per Resolve call.
func WithObserver(fn func(Outcome)) Option {
	return func(r *Resolver) {
		r.observe = fn
	}
}

// New creates a Resolver. A nil signer yields a resolver that never produces
// URLs.
func New(signer Signer, opts ...Option) *Resolver {
	r := &Resolver{
		signer:     signer,
		defaultTTL: DefaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bucket returns the configured bucket.
func (r *Resolver) Bucket() string {
	return r.bucket
}

// DefaultTTL returns the expiry used when none is requested.
func (r *Resolver) DefaultTTL() time.Duration {
	return r.defaultTTL
}

// Resolve returns a signed URL for key valid for ttl, or the default expiry
// when ttl is not positive. It reports false when no URL was produced.
func (r *Resolver) Resolve(ctx context.Context, key string, ttl time.Duration) (string, bool) {
	if key == "" {
		r.record(OutcomeSkipped)
		return "", false
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	url, err := r.presign(ctx, key, ttl)
	if err != nil {
		r.logger.Warn("Signed URL generation failed", "key", key, "bucket", r.bucket, "err", err)
		r.record(OutcomeFailed)
		return "", false
	}
	if url == "" {
		r.logger.Warn("Signer returned an empty URL", "key", key, "bucket", r.bucket)
		r.record(OutcomeFailed)
		return "", false
	}

	r.record(OutcomeSigned)
	return url, true
}

// Meta fetches display metadata for key. Failures yield an empty Meta.
func (r *Resolver) Meta(ctx context.Context, key string) Meta {
	if key == "" {
		return Meta{}
	}

	info, err := r.head(ctx, key)
	if err != nil {
		r.logger.Debug("Failed to fetch media metadata", "key", key, "err", err)
		return Meta{}
	}
	if info == nil {
		return Meta{}
	}

	return Meta{
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}
}

func (r *Resolver) presign(ctx context.Context, key string, ttl time.Duration) (url string, err error) {
	if r.signer == nil {
		return "", ErrSignerUnavailable
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: signer panic: %v", ErrSignerUnavailable, p)
		}
	}()
	return r.signer.PresignGet(ctx, r.bucket, key, ttl)
}

func (r *Resolver) head(ctx context.Context, key string) (info *ObjectInfo, err error) {
	if r.signer == nil {
		return nil, ErrSignerUnavailable
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: signer panic: %v", ErrSignerUnavailable, p)
		}
	}()
	return r.signer.Head(ctx, r.bucket, key)
}

func (r *Resolver) record(o Outcome) {
	if r.observe != nil {
		r.observe(o)
	}
}
