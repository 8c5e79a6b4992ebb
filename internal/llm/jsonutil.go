// internal/llm/jsonutil.go
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes Markdown code-fence wrappers (``` or ```json)
// that models sometimes emit around JSON payloads.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line.
		first := strings.TrimSpace(s[:idx])
		if first == "" || isFenceTag(first) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// CoerceToList normalizes the ambiguous JSON shapes models return for list
// payloads. It accepts an object holding the list under key, a bare array,
// or a single object, and returns the elements as generic maps.
func CoerceToList(raw string, key string) ([]map[string]interface{}, error) {
	cleaned := StripCodeFences(raw)

	var parsed interface{}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}

	switch v := parsed.(type) {
	case map[string]interface{}:
		if inner, ok := v[key]; ok {
			if arr, ok := inner.([]interface{}); ok {
				return toMapSlice(arr), nil
			}
			if obj, ok := inner.(map[string]interface{}); ok {
				return []map[string]interface{}{obj}, nil
			}
		}
		// A single object without the wrapper key is treated as one element.
		return []map[string]interface{}{v}, nil
	case []interface{}:
		return toMapSlice(v), nil
	}

	// Scalars are valid JSON but carry no list payload; callers treat this
	// as a parse failure, not an empty result.
	return nil, fmt.Errorf("expected object or array, got %T", parsed)
}

func toMapSlice(arr []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
