package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/api"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/config"
)

func newRouter(cfg *config.Config, c *components, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(api.Metrics(c.metrics))

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	r.Handle("/metrics", c.metrics.Handler())

	if c.media.Handler != nil {
		r.Handle(c.media.Prefix+"/*", c.media.Handler)
	}

	adminMiddleware, err := adminAuth(cfg, logger)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(c.service, cfg.Server.SecretKey,
		api.WithBlog(c.blog),
		api.WithUploader(c.media.Uploader),
		api.WithTokenTTL(cfg.Server.TokenTTL),
		api.WithCanonicalHost(cfg.Server.CanonicalHost),
		api.WithFeatures(api.Features{AutodubStub: cfg.Features.EnableAutodubStub}),
		api.WithMaxUploadBytes(cfg.Media.MaxUploadBytes),
		api.WithLogger(logger),
	)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
		r.Mount("/api/v1", handler.Routes(adminMiddleware))
	})

	return r, nil
}

// adminAuth guards /api/v1/admin with the hashed API key. Without a
// configured key the admin routes are closed.
func adminAuth(cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.Server.AdminAPIKeySHA256 == "" {
		logger.Warn("ADMIN_API_KEY_SHA256 not set, admin API disabled")
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, api.ErrorResponse{Error: api.ErrorBody{
					Code:    "admin_disabled",
					Message: "Admin API is not configured",
				}})
			})
		}, nil
	}

	return middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
		APIKeys: map[string]string{
			"admin": cfg.Server.AdminAPIKeySHA256,
		},
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
