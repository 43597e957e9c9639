package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/maruel/flatkv/internal/codec"
	ferrors "github.com/maruel/flatkv/internal/errors"
	"github.com/maruel/flatkv/internal/storage"
)

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"basic health check", "1.0.0"},
		{"dev version", "dev"},
		{"empty version", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(codec.New(storage.NewMemory()), tt.version)
			resp, err := handler.Health(context.Background(), &HealthRequest{})
			if err != nil {
				t.Fatalf("Health() error = %v", err)
			}
			if resp.Status != "ok" {
				t.Errorf("Status = %q, want %q", resp.Status, "ok")
			}
			if resp.Version != tt.version {
				t.Errorf("Version = %q, want %q", resp.Version, tt.version)
			}
		})
	}
}

func TestKeyHandler(t *testing.T) {
	ctx := context.Background()
	h := NewKeyHandler(codec.New(storage.NewMemory()))

	if _, err := h.GetKey(ctx, &KeyRequest{Key: "k"}); !ferrors.HasCode(err, ferrors.ErrNotFound) {
		t.Fatalf("GetKey on empty store: %v", err)
	}
	resp, err := h.SetKey(ctx, &SetKeyRequest{Key: "k", Value: json.RawMessage(`{ "a" : 1 }`)})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Value) != `{"a":1}` {
		t.Errorf("stored value not compacted: %s", resp.Value)
	}
	list, err := h.ListKeys(ctx, &ListKeysRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Entries) != 1 {
		t.Errorf("entries = %v", list.Entries)
	}
	if _, err := h.DeleteKey(ctx, &KeyRequest{Key: "k"}); err != nil {
		t.Fatal(err)
	}
	// Deleting twice is fine.
	if _, err := h.DeleteKey(ctx, &KeyRequest{Key: "k"}); err != nil {
		t.Fatal(err)
	}
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Validatable
		code ferrors.ErrorCode
	}{
		{"empty key", &KeyRequest{}, ferrors.ErrValidationFailed},
		{"set without value", &SetKeyRequest{Key: "k"}, ferrors.ErrValidationFailed},
		{"flatten scalar", &FlattenRequest{Tree: "x"}, ferrors.ErrNotObject},
		{"restore nil", &RestoreRequest{}, ferrors.ErrNotObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !ferrors.HasCode(err, tt.code) {
				t.Errorf("Validate() = %v, want code %s", err, tt.code)
			}
		})
	}
	valid := []Validatable{
		&KeyRequest{Key: "k"},
		&SetKeyRequest{Key: "k", Value: json.RawMessage("null")},
		&FlattenRequest{Tree: map[string]any{}},
		&RestoreRequest{Template: map[string]any{}},
		&ExpandRequest{},
	}
	for _, v := range valid {
		if err := v.Validate(); err != nil {
			t.Errorf("%T.Validate() = %v", v, err)
		}
	}
}

func TestTreeHandlerRestoreEscapedNames(t *testing.T) {
	ctx := context.Background()
	h := NewTreeHandler(codec.New(storage.NewMemory()))
	tree := map[string]any{`a.b\c`: map[string]any{"d": "v"}}
	if _, err := h.Flatten(ctx, &FlattenRequest{Prefix: "p", Tree: tree}); err != nil {
		t.Fatal(err)
	}
	resp, err := h.Restore(ctx, &RestoreRequest{Prefix: "p", Template: map[string]any{`a.b\c`: map[string]any{"d": ""}}})
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Tree[`a.b\c`].(map[string]any)["d"]; got != "v" {
		t.Errorf("restored %v", got)
	}
	exp, err := h.Expand(ctx, &ExpandRequest{Prefix: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := exp.Tree[`a.b\c`]; !ok {
		t.Errorf("expand lost escaped name: %v", exp.Tree)
	}
}
