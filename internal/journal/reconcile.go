package journal

import (
	"strings"
	"time"

	"github.com/pbaille/jot/internal/domain"
)

// Timestamps maps a trimmed entry title to the creation time it had when the
// document was last known. Retitling an entry therefore gives it a fresh
// timestamp on the next parse, exactly like deleting and recreating it.
type Timestamps map[string]time.Time

// Reconcile builds the lookup from previously known entries. When two entries
// share a title the later one in the slice wins.
func Reconcile(entries []domain.Entry) Timestamps {
	known := make(Timestamps, len(entries))
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		known[title] = e.Timestamp
	}
	return known
}

// Merge returns a new table holding t overlaid with other
func (t Timestamps) Merge(other Timestamps) Timestamps {
	merged := make(Timestamps, len(t)+len(other))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
