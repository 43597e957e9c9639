// Package handlers implements the HTTP API operations on top of the codec.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/maruel/flatkv/internal/codec"
	ferrors "github.com/maruel/flatkv/internal/errors"
)

// KeyHandler exposes single flat keys.
type KeyHandler struct {
	codec *codec.Codec
}

// NewKeyHandler creates a new key handler.
func NewKeyHandler(c *codec.Codec) *KeyHandler {
	return &KeyHandler{codec: c}
}

// ListKeys returns every entry of the store.
func (h *KeyHandler) ListKeys(ctx context.Context, req *ListKeysRequest) (*ListKeysResponse, error) {
	entries, err := h.codec.Dump()
	if err != nil {
		return nil, err
	}
	return &ListKeysResponse{Entries: entries}, nil
}

// ClearKeys deletes every key.
func (h *KeyHandler) ClearKeys(ctx context.Context, req *ClearKeysRequest) (*OKResponse, error) {
	if err := h.codec.ClearAll(); err != nil {
		return nil, err
	}
	return &OKResponse{OK: true}, nil
}

// GetKey returns the JSON value stored at a key.
func (h *KeyHandler) GetKey(ctx context.Context, req *KeyRequest) (*KeyResponse, error) {
	var v json.RawMessage
	ok, err := h.codec.GetInto(req.Key, &v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ferrors.NotFound(req.Key)
	}
	return &KeyResponse{Key: req.Key, Value: v}, nil
}

// SetKey stores a JSON value at a key and echoes it back.
func (h *KeyHandler) SetKey(ctx context.Context, req *SetKeyRequest) (*KeyResponse, error) {
	if err := h.codec.Set(req.Key, req.Value); err != nil {
		return nil, err
	}
	return h.GetKey(ctx, &KeyRequest{Key: req.Key})
}

// DeleteKey deletes a single key. Deleting an absent key succeeds.
func (h *KeyHandler) DeleteKey(ctx context.Context, req *KeyRequest) (*OKResponse, error) {
	if err := h.codec.Clear(req.Key); err != nil {
		return nil, err
	}
	return &OKResponse{OK: true}, nil
}
