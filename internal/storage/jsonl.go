package storage

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/maruel/flatkv/internal/jsonldb"
)

// JSONL is a Store persisted as an append-only JSONL log.
//
// Set and Delete append one row each; the latest row for a key wins when the
// log is loaded. Compact rewrites the log with only live entries.
type JSONL struct {
	mu    sync.RWMutex
	table *jsonldb.Table[Entry]
	data  map[string]string
}

// OpenJSONL loads the log at path, creating it on first write. The log is
// compacted on open when it contains superseded rows.
func OpenJSONL(path string) (*JSONL, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonl store path is required")
	}
	table, err := jsonldb.NewTable[Entry](path)
	if err != nil {
		return nil, err
	}
	s := &JSONL{table: table, data: make(map[string]string)}
	for _, e := range table.All() {
		if e.Deleted {
			delete(s.data, e.Key)
		} else {
			s.data[e.Key] = e.Value
		}
	}
	if table.Len() > len(s.data) {
		slog.Debug("Compacting jsonl store", "path", path, "rows", table.Len(), "live", len(s.data))
		if err := s.Compact(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Has implements Store.
func (s *JSONL) Has(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

// Get implements Store.
func (s *JSONL) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set implements Store.
func (s *JSONL) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok && old == value {
		return nil
	}
	if err := s.table.Append(Entry{Key: key, Value: value}); err != nil {
		return err
	}
	s.data[key] = value
	return nil
}

// Delete implements Store.
func (s *JSONL) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	if err := s.table.Append(Entry{Key: key, Deleted: true}); err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

// Keys implements Store.
func (s *JSONL) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data)), nil
}

// Compact rewrites the log so it holds exactly one row per live key.
func (s *JSONL) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]Entry, 0, len(s.data))
	for _, k := range slices.Sorted(maps.Keys(s.data)) {
		rows = append(rows, Entry{Key: k, Value: s.data[k]})
	}
	return s.table.Replace(rows)
}

// Close compacts the log.
func (s *JSONL) Close() error {
	s.mu.RLock()
	clean := s.table.Len() == len(s.data)
	s.mu.RUnlock()
	if clean {
		return nil
	}
	return s.Compact()
}
