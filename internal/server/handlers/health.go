package handlers

import (
	"context"

	"github.com/maruel/flatkv/internal/codec"
	ferrors "github.com/maruel/flatkv/internal/errors"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	codec   *codec.Codec
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(c *codec.Codec, version string) *HealthHandler {
	return &HealthHandler{codec: c, version: version}
}

// Health reports the server version and the number of stored keys. It fails
// when the store cannot be enumerated.
func (h *HealthHandler) Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	keys, err := h.codec.Store().Keys()
	if err != nil {
		return nil, ferrors.Storage("keys", err)
	}
	return &HealthResponse{Status: "ok", Version: h.version, Keys: len(keys)}, nil
}
