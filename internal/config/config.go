// Package config loads flatkv settings.
//
// Settings are layered, lowest precedence first: built-in defaults, an
// optional TOML file, FLATKV_* environment variables. Command line flags are
// applied on top by the caller.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/invopop/jsonschema"
	"github.com/pelletier/go-toml/v2"
)

// Config holds every setting of the CLI and the HTTP server.
type Config struct {
	Store     string `toml:"store" env:"FLATKV_STORE" jsonschema:"description=Store DSN such as mem: or jsonl:PATH or sqlite:PATH or a path ending in .jsonl or .db"`
	LogLevel  string `toml:"log_level" env:"FLATKV_LOG_LEVEL" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	HTTP      string `toml:"http" env:"FLATKV_HTTP" jsonschema:"description=Address the API server listens on,default=localhost:8080"`
	JWTSecret string `toml:"jwt_secret" env:"FLATKV_JWT_SECRET" jsonschema:"description=HS256 secret; when set every /api request needs a bearer token"`
	RateLimit int    `toml:"rate_limit" env:"FLATKV_RATE_LIMIT" jsonschema:"description=Requests per minute per client IP; 0 disables,minimum=0"`
	RateBurst int    `toml:"rate_burst" env:"FLATKV_RATE_BURST" jsonschema:"minimum=0"`
	CacheSize int    `toml:"cache_size" env:"FLATKV_CACHE_SIZE" jsonschema:"description=Values cached in memory by the server in front of a persistent store; 0 disables,minimum=0"`
	GeoDB     string `toml:"geo_db" env:"FLATKV_GEO_DB" jsonschema:"description=Optional MaxMind MMDB file used to log the client country"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Store:     "flatkv.jsonl",
		LogLevel:  "info",
		HTTP:      "localhost:8080",
		RateLimit: 600,
		RateBurst: 60,
		CacheSize: 4096,
	}
}

// Load returns the defaults overlaid with the TOML file at path (skipped when
// path is empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the -config flag
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%s: %s", path, strict.String())
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.RateLimit < 0 || c.RateBurst < 0 || c.CacheSize < 0 {
		return errors.New("rate_limit, rate_burst and cache_size must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		return errors.New("rate_burst must be positive when rate_limit is set")
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", s)
	}
}

// Schema returns the JSON Schema of the TOML config file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:              "toml",
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := r.Reflect(&Config{})
	s.Title = "flatkv configuration"
	return json.MarshalIndent(s, "", "  ")
}
