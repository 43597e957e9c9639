package handlers

import (
	"encoding/json"

	ferrors "github.com/maruel/flatkv/internal/errors"
)

// Validatable is implemented by request types that can validate their fields.
// Wrap uses this interface as a type constraint so every request type provides
// validation.
type Validatable interface {
	Validate() error
}

// ErrorDetails defines the structured error information in a response.
type ErrorDetails struct {
	Code    ferrors.ErrorCode `json:"code"`
	Message string            `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// Validate implements Validatable.
func (*HealthRequest) Validate() error { return nil }

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Keys    int    `json:"keys"`
}

// ListKeysRequest is the request for dumping the whole store.
type ListKeysRequest struct{}

// Validate implements Validatable.
func (*ListKeysRequest) Validate() error { return nil }

// ListKeysResponse holds every stored entry, values as stored JSON text.
type ListKeysResponse struct {
	Entries map[string]string `json:"entries"`
}

// ClearKeysRequest is the request for deleting every key.
type ClearKeysRequest struct{}

// Validate implements Validatable.
func (*ClearKeysRequest) Validate() error { return nil }

// KeyRequest addresses a single flat key.
type KeyRequest struct {
	Key string `path:"key"`
}

// Validate implements Validatable.
func (r *KeyRequest) Validate() error {
	if r.Key == "" {
		return ferrors.BadRequest("key is required")
	}
	return nil
}

// SetKeyRequest stores Value at Key.
type SetKeyRequest struct {
	Key   string          `path:"key"`
	Value json.RawMessage `json:"value"`
}

// Validate implements Validatable.
func (r *SetKeyRequest) Validate() error {
	if r.Key == "" {
		return ferrors.BadRequest("key is required")
	}
	if len(r.Value) == 0 {
		return ferrors.BadRequest("value is required")
	}
	return nil
}

// KeyResponse is a single stored entry.
type KeyResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// OKResponse acknowledges a mutation.
type OKResponse struct {
	OK bool `json:"ok"`
}

// FlattenRequest writes Tree under Prefix.
type FlattenRequest struct {
	Prefix string `json:"prefix"`
	Tree   any    `json:"tree"`
}

// Validate implements Validatable.
func (r *FlattenRequest) Validate() error {
	if _, ok := r.Tree.(map[string]any); !ok {
		return ferrors.NotObject(r.Tree)
	}
	return nil
}

// FlattenResponse lists the keys below Prefix after the write.
type FlattenResponse struct {
	Keys []string `json:"keys"`
}

// RestoreRequest reads the tree stored under Prefix into Template.
type RestoreRequest struct {
	Prefix   string `json:"prefix"`
	Template any    `json:"template"`
}

// Validate implements Validatable.
func (r *RestoreRequest) Validate() error {
	if _, ok := r.Template.(map[string]any); !ok {
		return ferrors.NotObject(r.Template)
	}
	return nil
}

// ExpandRequest rebuilds the tree stored under Prefix without a template.
type ExpandRequest struct {
	Prefix string `query:"prefix"`
}

// Validate implements Validatable.
func (*ExpandRequest) Validate() error { return nil }

// TreeResponse carries a nested tree.
type TreeResponse struct {
	Tree map[string]any `json:"tree"`
}
