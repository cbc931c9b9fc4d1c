package utils

import "strings"

// BatchStrings splits a slice of strings into batches of at most batchSize items.
func BatchStrings(items []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = len(items)
	}
	if len(items) == 0 {
		return [][]string{}
	}

	var batches [][]string
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// UniqueUpper normalises symbols to upper case and drops blanks and duplicates, keeping first-seen order.
func UniqueUpper(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := strings.ToUpper(strings.TrimSpace(item))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
