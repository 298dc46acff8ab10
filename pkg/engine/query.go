package engine

import (
	"net/url"
	"strings"
)

// parseQuery decodes a raw query string into a flat map. Pairs are split on
// "&" and the first "="; keys and values are percent-decoded, a key without
// "=" maps to "", and a repeated key keeps its last value. "+" is kept
// literally.
func parseQuery(raw string) map[string]string {
	query := make(map[string]string)
	if raw == "" {
		return query
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		query[unescape(key)] = unescape(value)
	}
	return query
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}
