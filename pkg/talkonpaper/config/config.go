// Package config reads talkonpaper settings from the environment and
// assembles the repository, media and blog components they describe.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/blog"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/repo/memory"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/repo/postgres"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/repo/sqlite"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/storage/local"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/storage/r2"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"

	MediaBackendR2    = "r2"
	MediaBackendLocal = "local"

	defaultSecretKey = "dev-secret-key-change-in-production"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	R2       R2Config
	Media    MediaConfig
	Blog     BlogConfig
	Features FeatureConfig
}

type ServerConfig struct {
	Port              string        `env:"PORT" env-default:"8080" env-description:"HTTP listen port"`
	Environment       string        `env:"ENVIRONMENT" env-default:"development" env-description:"development, production or testing"`
	LogLevel          string        `env:"LOG_LEVEL" env-default:"info"`
	CanonicalHost     string        `env:"CANONICAL_HOST" env-description:"Origin used for canonical URLs, e.g. https://talkonpaper.com"`
	SecretKey         string        `env:"SECRET_KEY" env-default:"dev-secret-key-change-in-production" env-description:"Signs viewer tokens and local media URLs"`
	AdminAPIKeySHA256 string        `env:"ADMIN_API_KEY_SHA256" env-description:"Hex SHA-256 of the admin API key"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" env-default:"30s"`
}

type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" env-default:"memory" env-description:"memory, sqlite://<path> or postgres://..."`
}

type R2Config struct {
	EndpointURL         string `env:"R2_ENDPOINT_URL"`
	AccessKeyID         string `env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey     string `env:"R2_SECRET_ACCESS_KEY"`
	BucketName          string `env:"R2_BUCKET_NAME" env-default:"talkonpaper-media"`
	Region              string `env:"R2_REGION" env-default:"auto"`
	UsePathStyle        bool   `env:"R2_USE_PATH_STYLE" env-default:"false"`
	SignedURLExpiration int    `env:"SIGNED_URL_EXPIRATION" env-default:"900" env-description:"Signed URL lifetime in seconds"`
}

type MediaConfig struct {
	Backend      string `env:"MEDIA_BACKEND" env-default:"r2" env-description:"r2 or local"`
	LocalDir     string `env:"LOCAL_MEDIA_DIR" env-default:"./media"`
	LocalBaseURL string `env:"LOCAL_MEDIA_BASE_URL"`

	// MaxUploadBytes caps admin uploads; zero or less uses the API default.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" env-default:"2147483648" env-description:"Largest accepted admin media upload"`
}

type BlogConfig struct {
	PostsDir      string        `env:"BLOG_POSTS_DIR" env-default:"blog_posts"`
	CacheTTL      time.Duration `env:"BLOG_CACHE_TTL" env-default:"5m"`
	CacheRedisURL string        `env:"BLOG_CACHE_REDIS_URL"`
}

type FeatureConfig struct {
	EnableSampleData  bool `env:"ENABLE_SAMPLE_DATA" env-default:"false"`
	EnableAutodubStub bool `env:"ENABLE_AUTODUB_STUB" env-default:"false"`
}

// Load reads dotenv files (default ".env") into the process environment,
// then the environment into a validated Config. Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Usage returns the environment variable help text.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("port is required")
	}
	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("environment must be one of development, production, testing: got %q", c.Server.Environment)
	}
	if c.Server.SecretKey == "" {
		return errors.New("secret_key is required")
	}
	if c.IsProduction() && c.Server.SecretKey == defaultSecretKey {
		return errors.New("secret_key must be changed in production")
	}
	if _, _, err := c.Database.Parse(); err != nil {
		return err
	}
	switch c.Media.Backend {
	case MediaBackendR2:
		if c.R2.BucketName == "" {
			return errors.New("r2 bucket name is required")
		}
	case MediaBackendLocal:
		if c.Media.LocalDir == "" {
			return errors.New("local media dir is required when media backend is local")
		}
	default:
		return fmt.Errorf("media backend must be 'r2' or 'local': got %q", c.Media.Backend)
	}
	if c.R2.SignedURLExpiration <= 0 {
		return errors.New("signed_url_expiration must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.R2.SignedURLExpiration) * time.Second
}

// LogLevel maps LOG_LEVEL to a slog level. Unknown values are info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Server.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Database kinds returned by DatabaseConfig.Parse.
const (
	DatabaseMemory   = "memory"
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

// Parse returns the store kind and its data source.
func (d DatabaseConfig) Parse() (kind, dsn string, err error) {
	u := strings.TrimSpace(d.URL)
	switch {
	case u == "" || u == DatabaseMemory:
		return DatabaseMemory, "", nil
	case strings.HasPrefix(u, "sqlite://"):
		path := strings.TrimPrefix(u, "sqlite://")
		if path == "" {
			return "", "", errors.New("sqlite database url needs a path")
		}
		return DatabaseSQLite, path, nil
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DatabasePostgres, u, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q: use memory, sqlite:// or postgres://", u)
	}
}

// BuildRepository opens and migrates the configured store. The returned
// closer releases its connections.
func (c *Config) BuildRepository(ctx context.Context) (talkonpaper.Repository, func(), error) {
	kind, dsn, err := c.Database.Parse()
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case DatabaseSQLite:
		repo, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case DatabasePostgres:
		pool, err := NewDbPool(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		return repo, pool.Close, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func NewDbPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Media is the assembled storage side of the service.
type Media struct {
	Signer   media.Signer
	Uploader media.Uploader
	// Handler serves signed local URLs and is nil for r2.
	Handler http.Handler
	// Prefix is the route Handler must be mounted on.
	Prefix string
}

func (c *Config) BuildMedia() (*Media, error) {
	switch c.Media.Backend {
	case MediaBackendLocal:
		backend, err := local.New(local.Config{
			BaseDir:   c.Media.LocalDir,
			SecretKey: c.Server.SecretKey,
			BaseURL:   c.Media.LocalBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create local media backend: %w", err)
		}
		return &Media{
			Signer:   backend,
			Uploader: backend.Uploader(c.R2.BucketName),
			Handler:  backend.Handler(),
			Prefix:   backend.URLPrefix(),
		}, nil
	default:
		backend, err := r2.New(r2.Config{
			Endpoint:        c.R2.EndpointURL,
			Region:          c.R2.Region,
			Bucket:          c.R2.BucketName,
			AccessKeyID:     c.R2.AccessKeyID,
			SecretAccessKey: c.R2.SecretAccessKey,
			UsePathStyle:    c.R2.UsePathStyle,
			PresignDuration: c.R2.SignedURLExpiration,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create r2 backend: %w", err)
		}
		return &Media{Signer: backend, Uploader: backend}, nil
	}
}

// BuildResolver wraps signer with the configured bucket and TTL.
func (c *Config) BuildResolver(signer media.Signer, opts ...media.Option) *media.Resolver {
	base := []media.Option{
		media.WithBucket(c.R2.BucketName),
		media.WithDefaultTTL(c.SignedURLTTL()),
	}
	return media.New(signer, append(base, opts...)...)
}

// BuildBlog returns a loader backed by Redis when BLOG_CACHE_REDIS_URL is
// set and an in-process cache otherwise.
func (c *Config) BuildBlog(ctx context.Context, opts ...blog.Option) (*blog.Loader, func(), error) {
	closer := func() {}
	var cache blog.Cache = blog.NewMemoryCache(c.Blog.CacheTTL)

	if c.Blog.CacheRedisURL != "" {
		client, err := blog.NewRedisClient(ctx, c.Blog.CacheRedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect blog cache: %w", err)
		}
		cache = blog.NewRedisCache(client, blog.DefaultRedisKey, c.Blog.CacheTTL)
		closer = func() { client.Close() }
	}

	loader := blog.New(c.Blog.PostsDir, append([]blog.Option{blog.WithCache(cache)}, opts...)...)
	return loader, closer, nil
}
