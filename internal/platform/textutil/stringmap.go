package textutil

import "strings"

// NormalizeStringMap cleans externally supplied key/value pairs, such as
// gateway callback query parameters, before they are stored or logged. Keys
// and values lose surrounding whitespace, entries whose key trims away
// entirely are dropped, and a map with nothing left collapses to nil.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	cleaned := make(map[string]string, len(values))
	for rawKey, rawValue := range values {
		key := strings.TrimSpace(rawKey)
		if key == "" {
			continue
		}
		cleaned[key] = strings.TrimSpace(rawValue)
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}
