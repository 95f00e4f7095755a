// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// NormalizeTags lowercases and trims each tag, dropping empties and duplicates.
// Order of first occurrence is preserved.
//
// Example:
//
//	NormalizeTags([]string{" Text ", "citizen_lookup", "text", ""})
//	// Returns: []string{"text", "citizen_lookup"}
func NormalizeTags(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		tag := strings.ToLower(strings.TrimSpace(v))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}

	return result
}
