// Package storage provides the flat string-to-string stores the path codec
// writes into.
//
// Every backend implements [Store]. Values are opaque strings to the store;
// the codec always writes JSON text. All backends are safe for concurrent use
// and every single-key operation is atomic. Multi-key sequences issued by the
// codec are not transactional.
package storage

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Store is the host key-value capability: existence check, get, set, delete
// and full enumeration.
type Store interface {
	// Has reports whether key is present.
	Has(key string) (bool, error)
	// Get returns the value stored at key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value at key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys returns every key in lexical order.
	Keys() ([]string, error)
}

// Entry is one key-value pair of a flat store.
type Entry struct {
	Key   string `json:"k"`
	Value string `json:"v,omitempty"`
	// Deleted marks a tombstone in append-only backends.
	Deleted bool `json:"d,omitempty"`
}

// Open opens a store from a DSN:
//
//	""  or "mem:"         in-memory store
//	"jsonl:PATH" or *.jsonl  JSONL append log
//	"sqlite:PATH", *.db or *.sqlite  SQLite database
//
// The returned store implements io.Closer when it holds resources.
func Open(dsn string) (Store, error) {
	scheme, rest, found := strings.Cut(dsn, ":")
	if !found || len(scheme) == 1 {
		// No scheme, or a Windows drive letter.
		scheme, rest = "", dsn
	}
	switch scheme {
	case "mem":
		return NewMemory(), nil
	case "jsonl":
		return OpenJSONL(rest)
	case "sqlite":
		return OpenSQLite(rest)
	case "":
	default:
		return nil, fmt.Errorf("unknown store scheme %q", scheme)
	}
	if rest == "" {
		return NewMemory(), nil
	}
	switch strings.ToLower(filepath.Ext(rest)) {
	case ".jsonl":
		return OpenJSONL(rest)
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(rest)
	default:
		return nil, fmt.Errorf("cannot infer store type from %q; use a jsonl: or sqlite: prefix", dsn)
	}
}

// Close closes s if it holds resources.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
