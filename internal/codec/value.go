package codec

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// undefined is the type of Undefined.
type undefined struct{}

// Undefined is a property value that Flatten turns into a deletion of the
// matching key instead of a write.
var Undefined any = undefined{}

// isArrayLike reports whether v is serialized whole as a JSON array.
// []byte is excluded because encoding/json writes it as a base64 string.
func isArrayLike(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]any); ok {
		return true
	}
	switch t := reflect.TypeOf(v); t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

// asObject returns v as a property mapping. Maps with string keys are copied
// into a map[string]any; structs (or pointers to them) go through their JSON
// form so that field tags apply.
func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case nil, undefined:
		return nil, false
	case map[string]any:
		return t, t != nil
	case json.RawMessage:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return nil, false
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return m, true
	case reflect.Struct:
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, false
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return m, true
	default:
		return nil, false
	}
}

// encode returns the JSON text of v without HTML escaping or a trailing
// newline.
func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// decodeLike decodes raw into a value of the same dynamic type as like, or
// into a generic JSON value when like is nil.
func decodeLike(raw string, like any) (any, error) {
	if like == nil {
		var v any
		err := json.Unmarshal([]byte(raw), &v)
		return v, err
	}
	p := reflect.New(reflect.TypeOf(like))
	if err := json.Unmarshal([]byte(raw), p.Interface()); err != nil {
		return nil, err
	}
	return p.Elem().Interface(), nil
}
