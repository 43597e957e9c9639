// Package document decodes and encodes tree documents in JSON, YAML and
// TOML.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a document serialization format.
type Format string

// Supported formats.
const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ParseFormat validates a format name. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case JSON, YAML, TOML:
		return f, nil
	case "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	case ".toml":
		return TOML
	default:
		return JSON
	}
}

// Decode parses data as a document whose root must be an object.
func Decode(data []byte, f Format) (map[string]any, error) {
	var out map[string]any
	switch f {
	case JSON:
		d := json.NewDecoder(bytes.NewReader(data))
		if err := d.Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	case YAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
		m, ok := normalize(raw).(map[string]any)
		if !ok && raw != nil {
			return nil, fmt.Errorf("yaml document root must be a mapping, got %T", raw)
		}
		out = m
	case TOML:
		if err := toml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Encode serializes v. JSON output is indented.
func Encode(v any, f Format) ([]byte, error) {
	switch f {
	case JSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return buf.Bytes(), nil
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case TOML:
		b, err := toml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// normalize converts YAML mappings with non-string keys to map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}
