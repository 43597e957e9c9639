package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type backend struct {
	name string
	open func(t *testing.T, dir string) Store
}

var backends = []backend{
	{"memory", func(t *testing.T, dir string) Store { return NewMemory() }},
	{"jsonl", func(t *testing.T, dir string) Store {
		s, err := OpenJSONL(filepath.Join(dir, "store.jsonl"))
		if err != nil {
			t.Fatalf("OpenJSONL: %v", err)
		}
		return s
	}},
	{"sqlite", func(t *testing.T, dir string) Store {
		s, err := OpenSQLite(filepath.Join(dir, "store.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		return s
	}},
	{"cached-sqlite", func(t *testing.T, dir string) Store {
		s, err := OpenSQLite(filepath.Join(dir, "store.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		// Tiny size so eviction runs too.
		return NewCache(s, 4)
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir())
			t.Cleanup(func() {
				if err := Close(s); err != nil {
					t.Errorf("Close: %v", err)
				}
			})
			fn(t, s)
		})
	}
}

func TestStoreBasics(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		if ok, err := s.Has("a"); err != nil || ok {
			t.Fatalf("Has(a) = %v, %v on empty store", ok, err)
		}
		if _, ok, err := s.Get("a"); err != nil || ok {
			t.Fatalf("Get(a) = %v, %v on empty store", ok, err)
		}
		if err := s.Set("a", `"one"`); err != nil {
			t.Fatal(err)
		}
		if err := s.Set("b", `2`); err != nil {
			t.Fatal(err)
		}
		if err := s.Set("a", `"uno"`); err != nil {
			t.Fatal(err)
		}
		if v, ok, err := s.Get("a"); err != nil || !ok || v != `"uno"` {
			t.Fatalf("Get(a) = %q, %v, %v", v, ok, err)
		}
		if ok, err := s.Has("b"); err != nil || !ok {
			t.Fatalf("Has(b) = %v, %v", ok, err)
		}
		keys, err := s.Keys()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
		if err := s.Delete("a"); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete("missing"); err != nil {
			t.Fatalf("Delete of missing key: %v", err)
		}
		if ok, _ := s.Has("a"); ok {
			t.Error("a should be deleted")
		}
	})
}

func TestStoreEmptyValueAndOddKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		keys := []string{"", ".", `.a\.b`, "ünïcødé", "with space"}
		for _, k := range keys {
			if err := s.Set(k, ""); err != nil {
				t.Fatalf("Set(%q): %v", k, err)
			}
		}
		for _, k := range keys {
			v, ok, err := s.Get(k)
			if err != nil || !ok || v != "" {
				t.Errorf("Get(%q) = %q, %v, %v", k, v, ok, err)
			}
		}
		got, err := s.Keys()
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(keys) {
			t.Errorf("Keys() = %q", got)
		}
	})
}

func TestStoreConcurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 20 {
					k := fmt.Sprintf("k%d.%d", i, j)
					if err := s.Set(k, "1"); err != nil {
						t.Errorf("Set: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()
		keys, err := s.Keys()
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 160 {
			t.Errorf("expected 160 keys, got %d", len(keys))
		}
	})
}

func TestJSONLPersistenceAndCompaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	s, err := OpenJSONL(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"1", "2", "3"} {
		if err := s.Set("a", v); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Set("b", "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("b"); err != nil {
		t.Fatal(err)
	}
	// Setting an identical value does not grow the log.
	if err := s.Set("a", "3"); err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, path); n != 5 {
		t.Errorf("expected 5 log rows before compaction, got %d", n)
	}

	s2, err := OpenJSONL(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, path); n != 1 {
		t.Errorf("expected 1 row after compaction on open, got %d", n)
	}
	if v, ok, _ := s2.Get("a"); !ok || v != "3" {
		t.Errorf("Get(a) = %q, %v after reload", v, ok)
	}
	if ok, _ := s2.Has("b"); ok {
		t.Error("tombstoned key b came back after reload")
	}
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", `"v"`); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	// Migrations are recorded and not re-applied.
	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s2.Close() }()
	if v, ok, err := s2.Get("k"); err != nil || !ok || v != `"v"` {
		t.Errorf("Get(k) = %q, %v, %v", v, ok, err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{"", "*storage.Memory", false},
		{"mem:", "*storage.Memory", false},
		{"jsonl:" + filepath.Join(dir, "a.log"), "*storage.JSONL", false},
		{filepath.Join(dir, "b.jsonl"), "*storage.JSONL", false},
		{"sqlite:" + filepath.Join(dir, "c"), "*storage.SQLite", false},
		{filepath.Join(dir, "d.db"), "*storage.SQLite", false},
		{"redis:localhost", "", true},
		{filepath.Join(dir, "e.txt"), "", true},
		{"jsonl:", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			s, err := Open(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Open(%q) expected error", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open(%q): %v", tt.dsn, err)
			}
			defer func() { _ = Close(s) }()
			if got := fmt.Sprintf("%T", s); got != tt.want {
				t.Errorf("Open(%q) = %s, want %s", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestExtractUpMigration(t *testing.T) {
	got := extractUpMigration("-- +migrate Up\nCREATE TABLE x;\n-- +migrate Down\nDROP TABLE x;\n")
	if strings.TrimSpace(got) != "CREATE TABLE x;" {
		t.Errorf("got %q", got)
	}
	if got := extractUpMigration("SELECT 1;"); got != "SELECT 1;" {
		t.Errorf("got %q", got)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(b), "\n")
}

type countingStore struct {
	Store
	mu   sync.Mutex
	gets int
	keys int
}

func (c *countingStore) Get(key string) (string, bool, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(key)
}

func (c *countingStore) Keys() ([]string, error) {
	c.mu.Lock()
	c.keys++
	c.mu.Unlock()
	return c.Store.Keys()
}

func TestCacheHits(t *testing.T) {
	backend := &countingStore{Store: NewMemory()}
	c := NewCache(backend, 100)
	if err := c.Set("a", "1"); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if v, ok, err := c.Get("a"); err != nil || !ok || v != "1" {
			t.Fatalf("Get(a) = %q, %v, %v", v, ok, err)
		}
		if _, ok, err := c.Get("missing"); err != nil || ok {
			t.Fatalf("Get(missing) = %v, %v", ok, err)
		}
	}
	if backend.gets != 1 {
		t.Errorf("backend Get called %d times, want 1 (negative lookup)", backend.gets)
	}

	for range 2 {
		if _, err := c.Keys(); err != nil {
			t.Fatal(err)
		}
	}
	if backend.keys != 1 {
		t.Errorf("backend Keys called %d times, want 1", backend.keys)
	}
	// Adding a key invalidates the key list; updating one does not.
	_ = c.Set("a", "2")
	_, _ = c.Keys()
	if backend.keys != 1 {
		t.Errorf("update of existing key invalidated Keys")
	}
	_ = c.Set("b", "3")
	keys, _ := c.Keys()
	if backend.keys != 2 {
		t.Errorf("new key did not invalidate Keys")
	}
	if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if err := c.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.Has("a"); ok {
		t.Error("a still present after Delete")
	}
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(NewMemory(), 2)
	for i := range 10 {
		if err := c.Set(fmt.Sprintf("k%d", i), "v"); err != nil {
			t.Fatal(err)
		}
	}
	c.mu.RLock()
	n := len(c.values)
	c.mu.RUnlock()
	if n > 2 {
		t.Errorf("cache holds %d values, max 2", n)
	}
	for i := range 10 {
		if ok, err := c.Has(fmt.Sprintf("k%d", i)); err != nil || !ok {
			t.Errorf("k%d lost: %v", i, err)
		}
	}
}
