package journal

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/jot/internal/domain"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// tickingClock returns a clock that advances one minute per call
func tickingClock() func() time.Time {
	t := epoch
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func TestParseTwoEntries(t *testing.T) {
	raw := "Trip to Japan\n#travel, #food\nHad ramen in Osaka.\n\nGym day\n#fitness\nLeg day."

	entries := Parser{Now: tickingClock()}.Parse(raw, nil)
	require.Len(t, entries, 2)

	assert.Equal(t, "Gym day", entries[0].Title)
	assert.Equal(t, []string{"fitness"}, entries[0].Categories)
	assert.Equal(t, "Leg day.", entries[0].Body)

	assert.Equal(t, "Trip to Japan", entries[1].Title)
	assert.Equal(t, []string{"travel", "food"}, entries[1].Categories)
	assert.Equal(t, "Had ramen in Osaka.", entries[1].Body)
}

func TestParseCategoryBeforeTitleIsDropped(t *testing.T) {
	entries := Parser{Now: tickingClock()}.Parse("#orphan, #tags\n\nFirst\nbody", nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "First", entries[0].Title)
	assert.Empty(t, entries[0].Categories)
	assert.Equal(t, "body", entries[0].Body)

	assert.Empty(t, Parse("#only, #categories", nil))
}

func TestParseUsesKnownTimestamps(t *testing.T) {
	old := epoch.Add(-48 * time.Hour)
	known := Timestamps{"Older": old}

	entries := Parser{Now: tickingClock()}.Parse("Older\nx\n\nNewer\ny", known)
	require.Len(t, entries, 2)
	assert.Equal(t, "Newer", entries[0].Title)
	assert.Equal(t, "Older", entries[1].Title)
	assert.True(t, entries[1].Timestamp.Equal(old))
}

func TestParseEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		titles []string
		bodies []string
	}{
		{name: "empty", raw: ""},
		{name: "only blanks", raw: "\n\n   \n"},
		{name: "title only", raw: "Hello", titles: []string{"Hello"}, bodies: []string{""}},
		{name: "title trimmed", raw: "   Hello  ", titles: []string{"Hello"}, bodies: []string{""}},
		{
			name:   "body keeps indentation",
			raw:    "T\nfirst\n  second",
			titles: []string{"T"},
			bodies: []string{"first\n  second"},
		},
		{
			name:   "blank line starts a new entry",
			raw:    "A\nbody a\n\n\n\nB",
			titles: []string{"A", "B"},
			bodies: []string{"body a", ""},
		},
		{
			name:   "crlf line endings",
			raw:    "A\r\n#x\r\nbody\r\n",
			titles: []string{"A"},
			bodies: []string{"body"},
		},
		{
			name:   "category line after blank still attaches",
			raw:    "A\nbody\n\n#late",
			titles: []string{"A"},
			bodies: []string{"body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A constant clock keeps buffer order, so titles read top to bottom.
			entries := Parser{Now: func() time.Time { return epoch }}.Parse(tt.raw, nil)
			require.Len(t, entries, len(tt.titles))
			for i, e := range entries {
				assert.Equal(t, tt.titles[i], e.Title)
				assert.Equal(t, tt.bodies[i], e.Body)
			}
		})
	}
}

func TestParseBodyNeverHoldsCategoryLines(t *testing.T) {
	entries := Parse("A\nline one\n#mid, #way\nline two", nil)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"mid", "way"}, entries[0].Categories)
	assert.Equal(t, "line one\nline two", entries[0].Body)
	assert.NotContains(t, entries[0].Body, "#")
}

func TestParseCategories(t *testing.T) {
	assert.Equal(t, []string{"travel", "food"}, ParseCategories("#travel, #food"))
	assert.Equal(t, []string{"travel", "food"}, ParseCategories("  #travel,food,  "))
	assert.Equal(t, []string{"a b"}, ParseCategories("# a b ,, #"))
	assert.Nil(t, ParseCategories("#"))
}

func TestReconcileLastWriteWins(t *testing.T) {
	first := epoch
	second := epoch.Add(time.Hour)
	known := Reconcile([]domain.Entry{
		{Title: "Same", Timestamp: first},
		{Title: " Same ", Timestamp: second},
		{Title: "", Timestamp: first},
	})
	assert.Len(t, known, 1)
	assert.True(t, known["Same"].Equal(second))
}

func TestTimestampsMerge(t *testing.T) {
	a := Timestamps{"x": epoch, "y": epoch}
	b := Timestamps{"y": epoch.Add(time.Hour)}
	m := a.Merge(b)
	assert.True(t, m["x"].Equal(epoch))
	assert.True(t, m["y"].Equal(epoch.Add(time.Hour)))
	assert.True(t, a["y"].Equal(epoch), "merge must not modify the receiver")
}

func TestSerialize(t *testing.T) {
	entries := []domain.Entry{
		{Title: " Gym day ", Categories: []string{"fitness"}, Body: "Leg day.\n"},
		{Title: "Trip to Japan", Categories: []string{"travel", "food"}, Body: "Had ramen in Osaka."},
		{Title: "Plain"},
	}
	want := "Gym day\n#fitness\nLeg day.\n\nTrip to Japan\n#travel, #food\nHad ramen in Osaka.\n\nPlain"
	assert.Equal(t, want, Serialize(entries))
	assert.Equal(t, "", Serialize(nil))
}

func TestDeleteLeavesOtherEntriesIdentical(t *testing.T) {
	entries := []domain.Entry{
		{Title: "C", Categories: []string{"x"}, Body: "c body"},
		{Title: "B", Body: "b body"},
		{Title: "A", Categories: []string{"y", "z"}},
	}
	before := strings.Split(Serialize(entries), "\n\n")

	remaining := append([]domain.Entry{entries[0]}, entries[2:]...)
	after := strings.Split(Serialize(remaining), "\n\n")

	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2], after[1])
}

// genEntries produces well-formed entry lists: unique non-empty titles,
// categories without separators, bodies with no blank or '#' lines, and
// strictly decreasing timestamps.
func genEntries() gopter.Gen {
	word := gen.AlphaString().SuchThat(func(s string) bool { return s != "" })
	entry := gopter.CombineGens(
		word,
		gen.SliceOfN(3, word),
		gen.SliceOfN(3, word),
		gen.IntRange(0, 3),
	)
	return gen.SliceOfN(6, entry).Map(func(raw [][]interface{}) []domain.Entry {
		entries := make([]domain.Entry, 0, len(raw))
		for i, r := range raw {
			v := r
			cats := v[1].([]string)
			lines := v[2].([]string)
			n := v[3].(int)
			if n > len(lines) {
				n = len(lines)
			}
			entries = append(entries, domain.Entry{
				Title:      fmt.Sprintf("%s %d", v[0].(string), i),
				Categories: cats[:n],
				Body:       strings.Join(lines[:n], "\n"),
				Timestamp:  epoch.Add(-time.Duration(i) * time.Hour),
			})
		}
		return entries
	})
}

func TestPropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse inverts serialize", prop.ForAll(
		func(entries []domain.Entry) bool {
			parsed := Parser{Now: tickingClock()}.Parse(Serialize(entries), Reconcile(entries))
			if len(parsed) != len(entries) {
				return false
			}
			for i := range entries {
				want, got := entries[i], parsed[i]
				if got.Title != want.Title || got.Body != strings.TrimSpace(want.Body) {
					return false
				}
				if !got.Timestamp.Equal(want.Timestamp) {
					return false
				}
				if strings.Join(got.Categories, ",") != strings.Join(want.Categories, ",") {
					return false
				}
			}
			return true
		},
		genEntries(),
	))

	properties.Property("parse never panics and sorts newest first", prop.ForAll(
		func(raw string) bool {
			entries := Parser{Now: tickingClock()}.Parse(raw, nil)
			for i := 1; i < len(entries); i++ {
				if entries[i].Timestamp.After(entries[i-1].Timestamp) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
