package journal

import (
	"strings"

	"github.com/pbaille/jot/internal/domain"
)

// DateLayout is how entry timestamps are shown to people and the assistant
const DateLayout = "2006-01-02 15:04"

// AssistantContext renders up to n of the most recent entries as labelled
// blocks separated by a "---" line. entries must already be newest first.
func AssistantContext(entries []domain.Entry, n int) string {
	if n < 0 || n > len(entries) {
		n = len(entries)
	}

	blocks := make([]string, 0, n)
	for _, e := range entries[:n] {
		var sb strings.Builder
		sb.WriteString("Title: ")
		sb.WriteString(e.Title)
		sb.WriteString("\nCategories: ")
		sb.WriteString(strings.Join(e.Categories, ", "))
		sb.WriteString("\nBody: ")
		sb.WriteString(e.Body)
		sb.WriteString("\nDate: ")
		sb.WriteString(e.Timestamp.Format(DateLayout))
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n---\n")
}
