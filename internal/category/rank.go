// Package category keeps the category vocabulary and ranks it for autocomplete.
package category

import (
	"sort"
	"strings"

	"github.com/pbaille/jot/internal/domain"
)

// MaxSuggestions caps every suggestion list
const MaxSuggestions = 5

// Suggestions ranks vocabulary names for query. An empty query returns the
// most used categories; otherwise only names containing, or contained in, the
// query are returned, best Score first.
func Suggestions(query string, vocab []domain.CategoryRecord) []string {
	if len(vocab) == 0 {
		return []string{}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		ranked := make([]domain.CategoryRecord, len(vocab))
		copy(ranked, vocab)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].UsageCount > ranked[j].UsageCount
		})
		return names(ranked)
	}

	q := strings.ToLower(query)
	var matches []domain.CategoryRecord
	for _, r := range vocab {
		n := strings.ToLower(r.Name)
		if strings.Contains(n, q) || strings.Contains(q, n) {
			matches = append(matches, r)
		}
	}

	scores := make(map[string]float64, len(matches))
	for _, r := range matches {
		scores[r.Name] = Score(r.Name, query)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return scores[matches[i].Name] > scores[matches[j].Name]
	})
	return names(matches)
}

func names(records []domain.CategoryRecord) []string {
	if len(records) > MaxSuggestions {
		records = records[:MaxSuggestions]
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

// Score is a cheap similarity between two names: 1 when equal ignoring case,
// 0.8 when one contains the other, else the Jaccard index of their character
// sets. It is not an edit distance.
func Score(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	setA, setB := charSet(a), charSet(b)
	union := len(setA)
	inter := 0
	for r := range setB {
		if setA[r] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}
