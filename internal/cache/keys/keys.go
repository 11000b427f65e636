// Package keys builds response cache keys.
package keys

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Prefix is shared by every response key so a purge can find them.
const Prefix = "viirs:resp:"

// Response returns the key for a request path and raw query. Query parameters
// are reordered so equivalent URLs share an entry; the hash covers the exact
// normalized text while the readable part is trimmed.
func Response(path, rawQuery string) string {
	pathNorm := sanitize(strings.TrimSpace(path))
	q := normalizeQuery(rawQuery)

	const maxReadable = 120
	readable := pathNorm
	if len(readable) > maxReadable {
		readable = readable[:maxReadable]
	}

	sum := xxhash.Sum64String(path + "?" + q)
	return fmt.Sprintf("%s%s:h=%016x", Prefix, readable, sum)
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	// Encode sorts by key.
	return vals.Encode()
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == '/':
			out = ':'
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-' || out == ':') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return strings.Trim(b.String(), ":")
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
