package category

import (
	"strings"

	"github.com/pbaille/jot/internal/domain"
	"github.com/pbaille/jot/internal/journal"
)

// Tally counts, for each category, the entries that reference it. An entry
// listing the same category twice counts once.
func Tally(entries []domain.Entry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		seen := make(map[string]bool, len(e.Categories))
		for _, c := range e.Categories {
			c = strings.TrimSpace(c)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			counts[c]++
		}
	}
	return counts
}

// FirstSeen lists the distinct categories of entries in the order they first appear
func FirstSeen(entries []domain.Entry) []string {
	var names []string
	seen := make(map[string]bool)
	for _, e := range entries {
		for _, c := range e.Categories {
			c = strings.TrimSpace(c)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			names = append(names, c)
		}
	}
	return names
}

// Apply adds tally to vocab. Known names keep their position; new names are
// appended in first-seen order of entries. Counts only grow.
func Apply(vocab []domain.CategoryRecord, entries []domain.Entry) []domain.CategoryRecord {
	tally := Tally(entries)
	out := make([]domain.CategoryRecord, 0, len(vocab)+len(tally))
	index := make(map[string]int, len(vocab))

	for _, r := range vocab {
		index[r.Name] = len(out)
		out = append(out, r)
	}
	for _, c := range FirstSeen(entries) {
		if i, ok := index[c]; ok {
			out[i].UsageCount += tally[c]
			continue
		}
		index[c] = len(out)
		out = append(out, domain.CategoryRecord{Name: c, UsageCount: tally[c]})
	}
	return out
}

// Fragment returns the partially typed category name before cursor and the
// byte offset where it starts. ok is false when cursor is not on a category line.
func Fragment(text string, cursor int) (frag string, start int, ok bool) {
	if cursor < 0 || cursor > len(text) {
		return "", 0, false
	}
	lineStart := strings.LastIndexByte(text[:cursor], '\n') + 1
	if !journal.IsCategoryLine(journal.CurrentLine(text, cursor)) {
		return "", 0, false
	}

	before := text[lineStart:cursor]
	cut := strings.LastIndexAny(before, "#,")
	if cut < 0 {
		// cursor sits in the indentation before '#'
		return "", 0, false
	}
	start = lineStart + cut + 1
	for start < cursor && text[start] == ' ' {
		start++
	}
	return text[start:cursor], start, true
}

// Complete replaces the fragment under cursor with name and returns the new
// text and cursor. Text is returned unchanged when cursor is not on a
// category line.
func Complete(text string, cursor int, name string) (string, int) {
	_, start, ok := Fragment(text, cursor)
	if !ok {
		return text, cursor
	}
	return text[:start] + name + text[cursor:], start + len(name)
}
