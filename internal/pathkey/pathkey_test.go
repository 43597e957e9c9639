package pathkey

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEscapeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"a.b", `a\.b`},
		{`a\b`, `a\\b`},
		{`a\.b`, `a\\\.b`},
		{`..`, `\.\.`},
		{`\`, `\\`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := EscapeSegment(tt.in); got != tt.want {
				t.Errorf("EscapeSegment(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got := UnescapeSegment(tt.want); got != tt.in {
				t.Errorf("UnescapeSegment(%q) = %q, want %q", tt.want, got, tt.in)
			}
		})
	}
}

func TestUnescapeTrailingEscape(t *testing.T) {
	if got := UnescapeSegment(`ab\`); got != `ab\` {
		t.Errorf("got %q", got)
	}
}

func TestJoin(t *testing.T) {
	if got := Join("", "a"); got != ".a" {
		t.Errorf("Join(\"\", a) = %q", got)
	}
	// The prefix is not escaped again.
	if got := Join(`p\.q`, "r.s"); got != `p\.q.r\.s` {
		t.Errorf("Join = %q", got)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"", []string{""}},
		{"a", []string{"a"}},
		{".a", []string{"", "a"}},
		{"a.b.c", []string{"a", "b", "c"}},
		{`.a\.b.c\\d`, []string{"", "a.b", `c\d`}},
		{`x\\.y`, []string{`x\`, "y"}},
		{`x\\\.y`, []string{`x\.y`}},
		{"a..b", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Split(tt.key)); diff != "" {
				t.Errorf("Split(%q) mismatch (-want +got):\n%s", tt.key, diff)
			}
		})
	}
}

func TestSplitRoundTrip(t *testing.T) {
	names := [][]string{
		{"a", "b"},
		{"a.b", "c"},
		{`back\slash`, "dot.", `.\.`},
		{`\`, `\\`, "."},
		{"", "empty", ""},
	}
	for _, segs := range names {
		key := ""
		for _, s := range segs {
			key = Join(key, s)
		}
		got := Split(key)
		want := append([]string{""}, segs...)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip of %q via %q (-want +got):\n%s", segs, key, diff)
		}
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		key, prefix string
		want        bool
	}{
		{".a", "", true},
		{".a.b", ".a", true},
		{".a", ".a", false},
		{".ab", ".a", false},
		{`.a\.b`, ".a", false},
		{`.a\\.b`, `.a\\`, true},
		{`.a\.b`, `.a\`, false},
		{"other", ".a", false},
	}
	for _, tt := range tests {
		if got := HasPrefix(tt.key, tt.prefix); got != tt.want {
			t.Errorf("HasPrefix(%q, %q) = %v, want %v", tt.key, tt.prefix, got, tt.want)
		}
	}
}
