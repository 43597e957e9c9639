// Package pathkey encodes property-access paths into flat store keys.
//
// A path key is a sequence of property names joined by Delimiter. Delimiter
// and Escape characters inside a name are prefixed with Escape so that a key
// can be split back into the exact names that produced it:
//
//	Join(Join("", "a.b"), `c\d`) == `.a\.b.c\\d`
//	Split(`.a\.b.c\\d`)          == []string{"", "a.b", `c\d`}
package pathkey

import "strings"

const (
	// Delimiter separates segments of a path key.
	Delimiter = '.'
	// Escape marks the next byte of a segment as literal.
	Escape = '\\'
)

var escaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`)

// EscapeSegment escapes Escape then Delimiter in a single property name.
//
// Backslashes are doubled before delimiters are escaped so that a
// pre-existing backslash is never read back as the escape of a delimiter.
func EscapeSegment(segment string) string {
	if !strings.ContainsAny(segment, `\.`) {
		return segment
	}
	return escaper.Replace(segment)
}

// UnescapeSegment reverses EscapeSegment. A trailing lone Escape is kept as is.
func UnescapeSegment(segment string) string {
	if strings.IndexByte(segment, Escape) < 0 {
		return segment
	}
	var b strings.Builder
	b.Grow(len(segment))
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		if c == Escape && i+1 < len(segment) {
			i++
			c = segment[i]
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Join appends an escaped segment to prefix. The prefix is taken verbatim.
func Join(prefix, segment string) string {
	return prefix + string(Delimiter) + EscapeSegment(segment)
}

// Split splits key on unescaped delimiters and unescapes every segment.
func Split(key string) []string {
	var out []string
	start := 0
	escaped := false
	for i := 0; i < len(key); i++ {
		switch {
		case escaped:
			escaped = false
		case key[i] == Escape:
			escaped = true
		case key[i] == Delimiter:
			out = append(out, UnescapeSegment(key[start:i]))
			start = i + 1
		}
	}
	return append(out, UnescapeSegment(key[start:]))
}

// HasPrefix reports whether key lies strictly below prefix, i.e. key starts
// with prefix followed by an unescaped delimiter.
func HasPrefix(key, prefix string) bool {
	if len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) || key[len(prefix)] != Delimiter {
		return false
	}
	// An odd run of escapes at the end of prefix means the delimiter is literal.
	n := 0
	for i := len(prefix) - 1; i >= 0 && prefix[i] == Escape; i-- {
		n++
	}
	return n%2 == 0
}
