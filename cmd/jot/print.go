package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/pbaille/jot/internal/domain"
	"github.com/pbaille/jot/internal/journal"
)

var (
	titleColor    = color.New(color.FgCyan, color.Bold)
	categoryColor = color.New(color.FgGreen)
	dimColor      = color.New(color.Faint)
)

func printEntries(entries []domain.Entry) {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("DATE", "TITLE", "CATEGORIES")
	for _, e := range entries {
		table.AddRow(
			dimColor.Sprint(e.Timestamp.Format(journal.DateLayout)),
			titleColor.Sprint(e.Title),
			categoryColor.Sprint(hashtags(e.Categories)),
		)
	}
	fmt.Println(table)
}

func printEntry(e domain.Entry) {
	titleColor.Println(e.Title)
	if len(e.Categories) > 0 {
		categoryColor.Println(hashtags(e.Categories))
	}
	dimColor.Println(e.Timestamp.Format(journal.DateLayout))
	if e.Body != "" {
		fmt.Printf("\n%s\n", e.Body)
	}
}

func printCategories(vocab []domain.CategoryRecord) {
	table := uitable.New()
	table.AddRow("CATEGORY", "ENTRIES")
	for _, c := range vocab {
		table.AddRow(categoryColor.Sprint("#"+c.Name), c.UsageCount)
	}
	fmt.Println(table)
}

func printRoles(lines []string, roles []journal.Role) {
	table := uitable.New()
	table.MaxColWidth = 80
	for i, line := range lines {
		role := roles[i]
		c := dimColor
		switch role {
		case journal.RoleTitle:
			c = titleColor
		case journal.RoleCategory:
			c = categoryColor
		}
		table.AddRow(fmt.Sprintf("%3d", i+1), c.Sprint(role.String()), line)
	}
	fmt.Println(table)
}

func printYAML(w io.Writer, entries []domain.Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func hashtags(categories []string) string {
	tags := make([]string, len(categories))
	for i, c := range categories {
		tags[i] = "#" + c
	}
	return strings.Join(tags, " ")
}

// entrySource adapts entries to fuzzy.Source, matching on title, categories and body.
type entrySource []domain.Entry

func (s entrySource) String(i int) string {
	e := s[i]
	return e.Title + " " + hashtags(e.Categories) + " " + e.Body
}

func (s entrySource) Len() int { return len(s) }

// searchEntries returns entries matching query, best match first
func searchEntries(entries []domain.Entry, query string) []domain.Entry {
	matches := fuzzy.FindFrom(query, entrySource(entries))
	out := make([]domain.Entry, len(matches))
	for i, m := range matches {
		out[i] = entries[m.Index]
	}
	return out
}
