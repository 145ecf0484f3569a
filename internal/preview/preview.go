// internal/preview/preview.go
package preview

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// DefaultMaxLen is the preview length used when callers pass maxLen <= 0
const DefaultMaxLen = 200

// Ellipsis is appended to every truncated preview
const Ellipsis = "..."

// Payload renders an arbitrary JSON value as a bounded string.
// Strings are used verbatim, other values are compact-marshalled. Anything
// longer than maxLen runes is cut and suffixed with Ellipsis. Returns nil for
// nil or JSON null input, and for values that cannot be marshalled.
func Payload(v any, maxLen int) *string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	s, ok := stringify(v)
	if !ok {
		return nil
	}
	if utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen]) + Ellipsis
	}
	return &s
}

func stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.RawMessage:
		return stringifyRaw(val)
	case []byte:
		return stringifyRaw(val)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	if bytes.Equal(b, []byte("null")) {
		return "", false
	}
	return string(b), true
}

func stringifyRaw(raw []byte) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s, true
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		// Not valid JSON; show the bytes as text.
		return string(trimmed), true
	}
	return buf.String(), true
}
