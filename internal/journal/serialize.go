package journal

import (
	"strings"

	"github.com/pbaille/jot/internal/domain"
)

// Serialize renders entries, assumed newest first, back into a buffer.
// Blocks are separated by exactly one blank line.
func Serialize(entries []domain.Entry) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, SerializeEntry(e))
	}
	return strings.Join(blocks, "\n\n")
}

// SerializeEntry renders one entry as its title line, an optional category
// line and the trimmed body.
func SerializeEntry(e domain.Entry) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(e.Title))

	if len(e.Categories) > 0 {
		sb.WriteString("\n#")
		sb.WriteString(strings.Join(e.Categories, ", #"))
	}

	if body := strings.TrimSpace(e.Body); body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
	}

	return sb.String()
}
