// Package codec maps nested key-value trees onto a flat string store.
//
// Flatten walks an object and writes one store entry per leaf. The entry key
// is the escaped property path (see package pathkey) and the value is the
// JSON text of the leaf. Arrays are leaves: they are stored whole. Restore
// walks a caller-supplied template of the same shape and reads the leaves
// back into it.
//
//	c := codec.New(storage.NewMemory())
//	_ = c.Flatten("app", map[string]any{"ui": map[string]any{"theme": "dark"}})
//	// store: {"app.ui.theme": `"dark"`}
//	tmpl := map[string]any{"ui": map[string]any{"theme": ""}}
//	_ = c.Restore("app", tmpl)
//	// tmpl["ui"].(map[string]any)["theme"] == "dark"
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"

	ferrors "github.com/maruel/flatkv/internal/errors"
	"github.com/maruel/flatkv/internal/pathkey"
	"github.com/maruel/flatkv/internal/storage"
)

// Codec reads and writes trees through an injected Store.
type Codec struct {
	store storage.Store
}

// New returns a Codec backed by store.
func New(store storage.Store) *Codec {
	return &Codec{store: store}
}

// Store returns the underlying flat store.
func (c *Codec) Store() storage.Store {
	return c.store
}

// Get decodes the JSON document stored at key, or returns def when key is
// absent.
func (c *Codec) Get(key string, def any) (any, error) {
	raw, ok, err := c.store.Get(key)
	if err != nil {
		return nil, ferrors.Storage("get", err)
	}
	if !ok {
		return def, nil
	}
	v, err := decodeLike(raw, nil)
	if err != nil {
		return nil, ferrors.InvalidJSON(key, err)
	}
	return v, nil
}

// GetInto decodes the JSON document stored at key into v and reports whether
// key was present. v is left untouched when it is not.
func (c *Codec) GetInto(key string, v any) (bool, error) {
	raw, ok, err := c.store.Get(key)
	if err != nil {
		return false, ferrors.Storage("get", err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, ferrors.InvalidJSON(key, err)
	}
	return true, nil
}

// Set stores value as a single JSON document at key. Undefined deletes key.
func (c *Codec) Set(key string, value any) error {
	if value == Undefined {
		return c.Clear(key)
	}
	raw, err := encode(value)
	if err != nil {
		return ferrors.InvalidJSON(key, err)
	}
	if err := c.store.Set(key, raw); err != nil {
		return ferrors.Storage("set", err)
	}
	return nil
}

// Flatten writes every leaf of obj under prefix.
//
// Each property p produces the key pathkey.Join(prefix, p). Arrays are stored
// whole as JSON arrays, nested objects recurse with the new key as prefix and
// every other value is stored as its JSON text. Properties are visited in
// name order. obj must be an object: a map with string keys, a struct or a
// pointer to either.
func (c *Codec) Flatten(prefix string, obj any) error {
	m, ok := asObject(obj)
	if !ok {
		return ferrors.NotObject(obj)
	}
	n, err := c.flatten(prefix, m)
	if err != nil {
		return err
	}
	slog.Debug("Flattened tree", "prefix", prefix, "leaves", n)
	return nil
}

func (c *Codec) flatten(prefix string, obj map[string]any) (int, error) {
	n := 0
	for _, prop := range slices.Sorted(maps.Keys(obj)) {
		key := pathkey.Join(prefix, prop)
		v := obj[prop]
		if v == Undefined {
			if err := c.store.Delete(key); err != nil {
				return n, ferrors.Storage("delete", err)
			}
			continue
		}
		if !isArrayLike(v) {
			if child, ok := asObject(v); ok {
				m, err := c.flatten(key, child)
				n += m
				if err != nil {
					return n, err
				}
				continue
			}
		}
		raw, err := encode(v)
		if err != nil {
			return n, ferrors.InvalidJSON(key, err)
		}
		if err := c.store.Set(key, raw); err != nil {
			return n, ferrors.Storage("set", err)
		}
		n++
	}
	return n, nil
}

// Restore fills template with the leaves stored under prefix.
//
// template is either a map[string]any, which is updated in place, or a
// non-nil pointer to a struct or map, which is updated through its JSON form.
// For each property of the template: an array-like value is replaced by the
// stored array when the key exists; a nested object recurses; any other value
// is replaced by the decoded stored value. Values keep the dynamic type of the
// template value when it is not nil. Properties whose key is absent keep their
// template value.
func (c *Codec) Restore(prefix string, template any) error {
	if m, ok := template.(map[string]any); ok {
		if m == nil {
			return ferrors.NotObject(template)
		}
		return c.restore(prefix, m)
	}
	rv := reflect.ValueOf(template)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ferrors.NotObject(template)
	}
	m, ok := asObject(template)
	if !ok {
		return ferrors.NotObject(template)
	}
	if err := c.restore(prefix, m); err != nil {
		return err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ferrors.InvalidJSON(prefix, err)
	}
	if err := json.Unmarshal(raw, template); err != nil {
		return ferrors.InvalidJSON(prefix, err)
	}
	return nil
}

func (c *Codec) restore(prefix string, tmpl map[string]any) error {
	for _, prop := range slices.Sorted(maps.Keys(tmpl)) {
		key := pathkey.Join(prefix, prop)
		v := tmpl[prop]
		if !isArrayLike(v) {
			if child, ok := asObject(v); ok {
				if err := c.restore(key, child); err != nil {
					return err
				}
				if _, same := v.(map[string]any); !same {
					tmpl[prop] = child
				}
				continue
			}
		}
		raw, ok, err := c.store.Get(key)
		if err != nil {
			return ferrors.Storage("get", err)
		}
		if !ok {
			continue
		}
		if v == Undefined || raw == "null" {
			// Decoding null into a typed value would leave its zero value.
			v = nil
		}
		got, err := decodeLike(raw, v)
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// The stored value has another shape than the template; take it as is.
			got, err = decodeLike(raw, nil)
		}
		if err != nil {
			return ferrors.InvalidJSON(key, err)
		}
		tmpl[prop] = got
	}
	return nil
}

// Clear deletes each literal key. Nothing else is removed.
func (c *Codec) Clear(keys ...string) error {
	for _, k := range keys {
		if err := c.store.Delete(k); err != nil {
			return ferrors.Storage("delete", err)
		}
	}
	return nil
}

// ClearAll deletes every key of the store.
func (c *Codec) ClearAll() error {
	keys, err := c.store.Keys()
	if err != nil {
		return ferrors.Storage("keys", err)
	}
	if err := c.Clear(keys...); err != nil {
		return err
	}
	slog.Debug("Cleared store", "keys", len(keys))
	return nil
}

// ClearPrefix deletes every key strictly below prefix and returns how many
// were removed.
func (c *Codec) ClearPrefix(prefix string) (int, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return 0, ferrors.Storage("keys", err)
	}
	n := 0
	for _, k := range keys {
		if !pathkey.HasPrefix(k, prefix) {
			continue
		}
		if err := c.store.Delete(k); err != nil {
			return n, ferrors.Storage("delete", err)
		}
		n++
	}
	return n, nil
}

// Dump returns a copy of the whole store. Values are the stored JSON text.
func (c *Codec) Dump() (map[string]string, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return nil, ferrors.Storage("keys", err)
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := c.store.Get(k)
		if err != nil {
			return nil, ferrors.Storage("get", err)
		}
		// Deleted concurrently.
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// Expand rebuilds the tree stored under prefix from the keys themselves,
// without a template. Values are decoded as generic JSON.
//
// When a key is both a leaf and the parent of other keys, the nested object
// wins and the leaf is dropped with a warning.
func (c *Codec) Expand(prefix string) (map[string]any, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return nil, ferrors.Storage("keys", err)
	}
	root := map[string]any{}
	for _, k := range keys {
		if !pathkey.HasPrefix(k, prefix) {
			continue
		}
		raw, ok, err := c.store.Get(k)
		if err != nil {
			return nil, ferrors.Storage("get", err)
		}
		if !ok {
			continue
		}
		v, err := decodeLike(raw, nil)
		if err != nil {
			return nil, ferrors.InvalidJSON(k, err)
		}
		if err := insert(root, pathkey.Split(k[len(prefix)+1:]), v); err != nil {
			slog.Warn("Dropping conflicting leaf", "key", k, "err", err)
		}
	}
	return root, nil
}

// insert sets path in tree to v, creating intermediate objects. A leaf that
// stands where an object is needed is replaced.
func insert(tree map[string]any, path []string, v any) error {
	node := tree
	var dropped error
	for _, seg := range path[:len(path)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			if old, exists := node[seg]; exists {
				dropped = fmt.Errorf("leaf %q replaced by object (was %v)", seg, old)
			}
			next = map[string]any{}
			node[seg] = next
		}
		node = next
	}
	last := path[len(path)-1]
	if _, isObj := node[last].(map[string]any); isObj {
		return fmt.Errorf("leaf %q shadowed by object", last)
	}
	node[last] = v
	return dropped
}
