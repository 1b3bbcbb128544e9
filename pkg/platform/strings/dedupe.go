// Package strings provides string list utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element and drops empty strings and repeats.
// Order of first occurrence is kept.
//
//	DedupeAndTrim([]string{"  k1:9092 ", "k2:9092", "k1:9092", ""})
//	// []string{"k1:9092", "k2:9092"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// SplitList splits a sep-separated setting such as a broker list.
// An empty or blank input yields nil.
func SplitList(s, sep string) []string {
	return DedupeAndTrim(strings.Split(s, sep))
}
