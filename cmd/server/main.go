package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/blog"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/config"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		fmt.Fprintln(os.Stderr, config.Usage())
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// components holds everything the router needs.
type components struct {
	service talkonpaper.Service
	blog    *blog.Loader
	media   *config.Media
	metrics *metrics.Metrics
	closers []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{metrics: metrics.New()}

	repo, closeRepo, err := cfg.BuildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	c.closers = append(c.closers, closeRepo)

	c.media, err = cfg.BuildMedia()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build media backend: %w", err)
	}

	resolver := cfg.BuildResolver(c.media.Signer,
		media.WithLogger(logger),
		media.WithObserver(c.metrics.ObserveSigning),
	)

	c.service, err = talkonpaper.New(
		talkonpaper.WithRepository(repo),
		talkonpaper.WithResolver(resolver),
		talkonpaper.WithLogger(logger),
		talkonpaper.WithDecisionObserver(c.metrics.ObserveDecision),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build service: %w", err)
	}

	loader, closeBlog, err := cfg.BuildBlog(ctx,
		blog.WithLogger(logger),
		blog.WithCacheObserver(c.metrics.RecordCacheLookup),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build blog: %w", err)
	}
	c.blog = loader
	c.closers = append(c.closers, closeBlog)

	return c, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if cfg.Features.EnableSampleData {
		logger.Warn("ENABLE_SAMPLE_DATA is ignored, publish talks through POST /api/v1/admin/talks")
	}

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	handler, err := newRouter(cfg, c, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		dbKind, _, _ := cfg.Database.Parse()
		logger.Info("TalkOnPaper server starting",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"database", dbKind,
			"media_backend", cfg.Media.Backend,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}
