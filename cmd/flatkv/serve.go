package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/maruel/flatkv/internal/codec"
	"github.com/maruel/flatkv/internal/config"
	"github.com/maruel/flatkv/internal/server"
	"github.com/maruel/flatkv/internal/server/ipgeo"
	"github.com/maruel/flatkv/internal/server/ratelimit"
	"github.com/maruel/flatkv/internal/storage"
)

func cmdServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("serve")
	httpAddr := fs.String("http", e.cfg.HTTP, "Address to listen on (e.g., localhost:8080, :8080)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errors.New("usage: serve [-http ADDR]")
	}

	// Only the log level is reloaded; other settings need a restart.
	if e.configPath != "" {
		err := config.Watch(ctx, e.configPath, func(c config.Config) {
			if l, err := config.ParseLevel(c.LogLevel); err == nil && l != e.level.Level() {
				e.level.Set(l)
				slog.InfoContext(ctx, "Log level changed", "level", l)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
	}

	opts := server.Options{JWTSecret: []byte(e.cfg.JWTSecret)}
	opts.Version, _, _, _ = getBuildInfo()
	if e.cfg.RateLimit > 0 {
		opts.Limiter = ratelimit.NewLimiter(e.cfg.RateLimit, time.Minute, e.cfg.RateBurst)
		defer opts.Limiter.Close()
	}
	if e.cfg.GeoDB != "" {
		geo, err := ipgeo.Open(e.cfg.GeoDB)
		if err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geo.Close() }()
		opts.Geo = geo
		slog.InfoContext(ctx, "IP geolocation enabled", "db", e.cfg.GeoDB)
	}
	c := e.codec
	if _, inMemory := c.Store().(*storage.Memory); !inMemory && e.cfg.CacheSize > 0 {
		// The backend is closed by run.
		c = codec.New(storage.NewCache(c.Store(), e.cfg.CacheSize))
	}
	if len(opts.JWTSecret) == 0 {
		slog.WarnContext(ctx, "Authentication disabled; set jwt_secret to enable it")
	}

	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           server.NewRouter(c, opts),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", *httpAddr, "store", e.cfg.Store, "version", opts.Version)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}
