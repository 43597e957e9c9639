package ipgeo

import (
	"path/filepath"
	"testing"
)

func TestCountryWithoutDB(t *testing.T) {
	var c *Checker
	tests := []struct {
		ip   string
		want string
	}{
		{"127.0.0.1", "local"},
		{"::1", "local"},
		{"::ffff:10.0.0.1", "local"},
		{"192.168.1.1", "local"},
		{"0.0.0.0", "local"},
		{"fe80::1", "local"},
		{"203.0.113.9", ""},
		{"not-an-ip", ""},
	}
	for _, tt := range tests {
		if got := c.Country(tt.ip); got != tt.want {
			t.Errorf("Country(%q) = %q, want %q", tt.ip, got, tt.want)
		}
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Error("expected error")
	}
}
