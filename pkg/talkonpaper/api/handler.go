// Package api exposes the talkonpaper catalog over JSON with chi.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/blog"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
)

const (
	defaultTokenTTL       = 24 * time.Hour
	defaultMaxUploadBytes = 2 << 30
	relatedPosts          = 3
)

// Features are optional capabilities advertised to clients.
type Features struct {
	AutodubStub bool `json:"autodub_stub"`
}

// Handler serves the talkonpaper JSON API.
type Handler struct {
	service       talkonpaper.Service
	blog          *blog.Loader
	uploader      media.Uploader
	tokens        *jwtauth.JWTAuth
	tokenTTL      time.Duration
	canonicalHost string
	features      Features
	maxUpload     int64
	logger        *slog.Logger
}

type Option func(*Handler)

// WithBlog enables the /blog routes.
func WithBlog(loader *blog.Loader) Option {
	return func(h *Handler) {
		h.blog = loader
	}
}

// WithUploader enables PUT /admin/media/*.
func WithUploader(u media.Uploader) Option {
	return func(h *Handler) {
		h.uploader = u
	}
}

// WithTokenTTL sets the lifetime of issued viewer tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		if ttl > 0 {
			h.tokenTTL = ttl
		}
	}
}

// WithCanonicalHost sets the origin prefixed to canonical_url values.
func WithCanonicalHost(host string) Option {
	return func(h *Handler) {
		h.canonicalHost = strings.TrimRight(host, "/")
	}
}

// WithFeatures sets the capabilities reported by /tiers.
func WithFeatures(f Features) Option {
	return func(h *Handler) {
		h.features = f
	}
}

// WithMaxUploadBytes caps the body size of media uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a handler. secret signs viewer tokens with HS256.
func NewHandler(service talkonpaper.Service, secret string, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		tokens:    jwtauth.New("HS256", []byte(secret), nil),
		tokenTTL:  defaultTokenTTL,
		maxUpload: defaultMaxUploadBytes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router. adminMiddleware guards /admin.
func (h *Handler) Routes(adminMiddleware ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(h.tokens))
	r.Use(h.Viewer)

	r.Get("/tiers", h.ListTiers)

	r.Route("/talks", func(r chi.Router) {
		r.Get("/", h.ListTalks)
		r.Get("/featured", h.FeaturedTalks)
		r.Get("/{id}", h.GetTalk)
		r.Get("/{id}/media-meta", h.GetTalkMediaMeta)
		r.Get("/{id}/{slug}", h.GetTalk)
	})

	r.Route("/papers", func(r chi.Router) {
		r.Get("/", h.ListPapers)
		r.Get("/{id}", h.GetPaper)
	})

	r.Route("/speakers", func(r chi.Router) {
		r.Get("/", h.ListSpeakers)
		r.Get("/{id}", h.GetSpeaker)
	})

	if h.blog != nil {
		r.Route("/blog", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.Get("/{slug}", h.GetPost)
		})
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/account", func(r chi.Router) {
		r.Use(RequireViewer)
		r.Get("/", h.GetAccount)
		r.Post("/subscription", h.ChangeSubscription)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminMiddleware...)
		r.Get("/stats", h.Stats)
		r.Post("/talks", h.CreateTalk)
		r.Put("/media/*", h.UploadMedia)
	})

	return r
}

func (h *Handler) canonicalURL(path string) string {
	return h.canonicalHost + path
}
