package handlers

import (
	"context"
	"log/slog"

	"github.com/maruel/flatkv/internal/codec"
	ferrors "github.com/maruel/flatkv/internal/errors"
	"github.com/maruel/flatkv/internal/pathkey"
)

// TreeHandler exposes whole trees stored under a prefix.
type TreeHandler struct {
	codec *codec.Codec
}

// NewTreeHandler creates a new tree handler.
func NewTreeHandler(c *codec.Codec) *TreeHandler {
	return &TreeHandler{codec: c}
}

// Flatten writes the request tree under its prefix.
func (h *TreeHandler) Flatten(ctx context.Context, req *FlattenRequest) (*FlattenResponse, error) {
	if err := h.codec.Flatten(req.Prefix, req.Tree); err != nil {
		return nil, err
	}
	keys, err := h.codec.Store().Keys()
	if err != nil {
		return nil, ferrors.Storage("keys", err)
	}
	out := []string{}
	for _, k := range keys {
		if pathkey.HasPrefix(k, req.Prefix) {
			out = append(out, k)
		}
	}
	slog.InfoContext(ctx, "Flattened tree", "prefix", req.Prefix, "keys", len(out))
	return &FlattenResponse{Keys: out}, nil
}

// Restore fills the request template from the keys under its prefix.
func (h *TreeHandler) Restore(ctx context.Context, req *RestoreRequest) (*TreeResponse, error) {
	tmpl := req.Template.(map[string]any)
	if err := h.codec.Restore(req.Prefix, tmpl); err != nil {
		return nil, err
	}
	return &TreeResponse{Tree: tmpl}, nil
}

// Expand rebuilds the tree under a prefix from the stored keys alone.
func (h *TreeHandler) Expand(ctx context.Context, req *ExpandRequest) (*TreeResponse, error) {
	tree, err := h.codec.Expand(req.Prefix)
	if err != nil {
		return nil, err
	}
	return &TreeResponse{Tree: tree}, nil
}
