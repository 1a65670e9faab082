package chunking

import (
	"sort"
	"strings"
)

// extractKeywords frequency-ranks the non-trivial lowercase tokens of the
// content and returns the top n.
func extractKeywords(content string, n int) []string {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, ".,!?;:\"'()[]{}")
		if len(w) > 3 {
			counts[w]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	// Ties break alphabetically so keyword order is deterministic.
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}
