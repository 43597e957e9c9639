// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/maruel/flatkv/internal/codec"
	ferrors "github.com/maruel/flatkv/internal/errors"
	"github.com/maruel/flatkv/internal/server/handlers"
	"github.com/maruel/flatkv/internal/server/ipgeo"
	"github.com/maruel/flatkv/internal/server/ratelimit"
)

// Options configures NewRouter.
type Options struct {
	// Version is reported by /api/health.
	Version string
	// JWTSecret enables bearer token authentication when not empty.
	JWTSecret []byte
	// Limiter enables per client IP rate limiting when not nil. The caller
	// owns it and closes it.
	Limiter *ratelimit.Limiter
	// Geo adds the client country to request logs when not nil.
	Geo *ipgeo.Checker
}

// NewRouter creates and configures the HTTP router serving the API at /api/*.
func NewRouter(c *codec.Codec, opts Options) http.Handler {
	mux := &http.ServeMux{}
	hh := handlers.NewHealthHandler(c, opts.Version)
	kh := handlers.NewKeyHandler(c)
	th := handlers.NewTreeHandler(c)

	// Health check
	mux.Handle("GET /api/health", Wrap(hh.Health))

	// Flat keys. Keys may contain slashes.
	mux.Handle("GET /api/keys", Wrap(kh.ListKeys))
	mux.Handle("DELETE /api/keys", Wrap(kh.ClearKeys))
	mux.Handle("GET /api/keys/{key...}", Wrap(kh.GetKey))
	mux.Handle("PUT /api/keys/{key...}", Wrap(kh.SetKey))
	mux.Handle("DELETE /api/keys/{key...}", Wrap(kh.DeleteKey))

	// Trees
	mux.Handle("GET /api/tree", Wrap(th.Expand))
	mux.Handle("POST /api/tree/flatten", Wrap(th.Flatten))
	mux.Handle("POST /api/tree/restore", Wrap(th.Restore))

	var h http.Handler = mux
	h = AuthMiddleware(opts.JWTSecret)(h)
	h = ratelimit.Middleware(opts.Limiter, rejectRateLimited)(h)
	return LoggingMiddleware(opts.Geo)(h)
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, ferrors.RateLimited())
}
