package detection

import (
	"encoding/json"
	"regexp"
	"strings"
)

var reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// SanitizeModelJSON removes code fences from a model response and trims it
// to the outermost JSON array or object. Trailing commas are only removed
// when the text is not already valid JSON.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Prefer an explicit ```json fence anywhere in the text
	if _, after, ok := strings.Cut(raw, "```json"); ok {
		raw = after
		if body, _, ok := strings.Cut(raw, "```"); ok {
			raw = body
		}
	} else if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Keep only the outermost [...] or {...}, whichever opens first
	open, close := "[", "]"
	if obj := strings.Index(raw, "{"); obj >= 0 {
		if arr := strings.Index(raw, "["); arr < 0 || obj < arr {
			open, close = "{", "}"
		}
	}
	if start := strings.Index(raw, open); start >= 0 {
		if end := strings.LastIndex(raw, close); end > start {
			raw = raw[start : end+1]
		}
	}
	raw = strings.TrimSpace(raw)

	if !json.Valid([]byte(raw)) {
		if repaired := reTrailingComma.ReplaceAllString(raw, "$1"); json.Valid([]byte(repaired)) {
			raw = repaired
		}
	}
	return raw
}
