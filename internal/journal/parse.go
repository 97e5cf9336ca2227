// Package journal converts between a free-form journal text buffer and an
// ordered list of entries, and classifies buffer lines while the user types.
//
// The buffer format is:
//
//	Document     := Entry (BlankLine+ Entry)*
//	Entry        := TitleLine CategoryLine? BodyLine*
//	TitleLine    := non-empty line not starting with '#'
//	CategoryLine := '#' Name (',' WS* Name)*
//
// Nothing in this package performs I/O or returns an error: malformed input
// yields a best-effort, possibly empty, result.
package journal

import (
	"sort"
	"strings"
	"time"

	"github.com/pbaille/jot/internal/domain"
)

// Parser folds a raw buffer into entries. Now supplies timestamps for titles
// missing from the reconciliation table; nil means time.Now.
type Parser struct {
	Now func() time.Time
}

// Parse uses the wall clock for unknown titles
func Parse(raw string, known Timestamps) []domain.Entry {
	return Parser{}.Parse(raw, known)
}

// Parse scans raw line by line and returns entries sorted newest first.
// Entries sharing a timestamp keep their buffer order.
func (p Parser) Parse(raw string, known Timestamps) []domain.Entry {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	var (
		entries   []domain.Entry
		current   *domain.Entry
		bodyLines []string
		prevEmpty = true
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
		entries = append(entries, *current)
	}

	for _, line := range SplitLines(raw) {
		trimmed := strings.TrimSpace(line)

		switch {
		case IsCategoryLine(line):
			// Categories before the first title have nowhere to go
			if current != nil {
				current.Categories = append(current.Categories, ParseCategories(line)...)
			}
			prevEmpty = false
			continue

		case trimmed != "" && prevEmpty:
			flush()
			stamp, ok := known[trimmed]
			if !ok {
				stamp = now()
			}
			current = &domain.Entry{
				Title:      trimmed,
				Categories: []string{},
				Timestamp:  stamp,
			}
			bodyLines = nil
			prevEmpty = false
			continue

		case current != nil:
			if trimmed == "" {
				bodyLines = append(bodyLines, "")
			} else {
				bodyLines = append(bodyLines, line)
			}
		}

		prevEmpty = trimmed == ""
	}
	flush()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries
}

// SplitLines splits a buffer on "\n", dropping a trailing "\r" from each line.
// An empty buffer has no lines.
func SplitLines(raw string) []string {
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// IsCategoryLine reports whether line, ignoring surrounding whitespace, starts with '#'
func IsCategoryLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// ParseCategories returns the category names declared on a category line.
// Each comma-separated piece is trimmed and loses its own leading '#', so
// "#travel, #food" and "#travel,food" both give [travel food].
func ParseCategories(line string) []string {
	rest := strings.TrimPrefix(strings.TrimSpace(line), "#")

	var names []string
	for _, piece := range strings.Split(rest, ",") {
		name := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(piece), "#"))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
