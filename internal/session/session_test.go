package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pbaille/jot/internal/domain"
	"github.com/pbaille/jot/internal/journal"
)

type memStore struct {
	doc      *domain.Document
	vocab    []domain.CategoryRecord
	msgs     []domain.Message
	loadErr  error
	saveErr  error
	saves    int
	savedRaw string
}

func (m *memStore) LoadDocument(_ context.Context, name string) (*domain.Document, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.doc == nil {
		return &domain.Document{Name: name}, nil
	}
	return m.doc, nil
}

func (m *memStore) SaveDocument(_ context.Context, name, raw string, entries []domain.Entry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.savedRaw = raw
	m.doc = &domain.Document{Name: name, RawText: raw, Entries: entries}
	return nil
}

func (m *memStore) Vocabulary(context.Context) ([]domain.CategoryRecord, error) {
	return m.vocab, nil
}

func (m *memStore) AppendMessage(_ context.Context, _ string, msg domain.Message) error {
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memStore) Messages(context.Context, string) ([]domain.Message, error) {
	return m.msgs, nil
}

// clock advances one minute per call
func clock() func() time.Time {
	t := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func open(t *testing.T, st *memStore, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithClock(clock())}, opts...)
	return Open(context.Background(), st, "journal", opts...)
}

func titles(entries []domain.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func TestOpenRestoresTimestamps(t *testing.T) {
	stamp := time.Date(2023, 1, 2, 3, 4, 0, 0, time.UTC)
	st := &memStore{doc: &domain.Document{
		RawText: "Trip\n#travel\nRamen",
		Entries: []domain.Entry{{Title: "Trip", Categories: []string{"travel"}, Body: "Ramen", Timestamp: stamp}},
	}}
	s := open(t, st)
	require.Len(t, s.Entries(), 1)
	assert.True(t, s.Entries()[0].Timestamp.Equal(stamp))
	assert.False(t, s.Dirty())
}

func TestOpenFailedLoadIsEmpty(t *testing.T) {
	s := open(t, &memStore{loadErr: errors.New("disk gone")})
	assert.Equal(t, "", s.Text())
	assert.Empty(t, s.Entries())
}

func TestSetTextKeepsTimestampsAcrossEdits(t *testing.T) {
	s := open(t, &memStore{})
	s.SetText("Trip\n#travel\nRamen")
	first := s.Entries()[0].Timestamp

	s.SetText("Trip\n#travel\nRamen and gyoza")
	require.Len(t, s.Entries(), 1)
	assert.True(t, s.Entries()[0].Timestamp.Equal(first))
	assert.Equal(t, "Ramen and gyoza", s.Entries()[0].Body)

	// Retitling is a new identity and gets a fresh timestamp
	s.SetText("Osaka trip\n#travel\nRamen and gyoza")
	assert.True(t, s.Entries()[0].Timestamp.After(first))
}

func TestNewEntryFlow(t *testing.T) {
	s := open(t, &memStore{})
	s.SetText("Old\n#x\nbody")

	s.NewEntry()
	assert.True(t, s.TitleMode())
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, journal.RoleTitle, s.Roles(0)[0])

	s.Type(0, "Gym day\nfitness,legs\nLeg day.")
	assert.False(t, s.TitleMode())
	assert.Equal(t, "Gym day\n#fitness, #legs\nLeg day.\n\nOld\n#x\nbody", s.Text())

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Gym day", entries[0].Title)
	assert.Equal(t, []string{"fitness", "legs"}, entries[0].Categories)
	assert.Equal(t, "Leg day.", entries[0].Body)
	assert.Equal(t, []journal.Role{
		journal.RoleTitle, journal.RoleCategory, journal.RoleBody, journal.RoleBlank,
		journal.RoleTitle, journal.RoleCategory, journal.RoleBody,
	}, s.Roles(s.Cursor()))
}

func TestNewEntryOnEmptyBuffer(t *testing.T) {
	s := open(t, &memStore{})
	s.NewEntry()
	edit := s.Type(0, "First\n")
	assert.Equal(t, "First\n#", edit.Text)
	assert.True(t, edit.Intercepted)
}

func TestFieldEdits(t *testing.T) {
	s := open(t, &memStore{})
	require.NoError(t, s.AddEntry(domain.Entry{Title: "A", Body: "a body"}))
	require.NoError(t, s.AddEntry(domain.Entry{Title: " B ", Categories: []string{"x, y"}, Body: "b body\n"}))
	assert.Equal(t, []string{"B", "A"}, titles(s.Entries()))
	assert.Equal(t, "B\n#x, #y\nb body\n\nA\na body", s.Text())

	stampA := s.Entries()[1].Timestamp
	require.NoError(t, s.UpdateEntry(1, "A", []string{"z"}, "new body"))
	assert.True(t, s.Entries()[1].Timestamp.Equal(stampA), "same title keeps its timestamp")
	assert.Equal(t, "B\n#x, #y\nb body\n\nA\n#z\nnew body", s.Text())

	require.NoError(t, s.UpdateEntry(1, "A renamed", nil, "new body"))
	assert.Equal(t, []string{"A renamed", "B"}, titles(s.Entries()), "renamed entry is newest")

	require.NoError(t, s.DeleteEntry(0))
	assert.Equal(t, "B\n#x, #y\nb body", s.Text())

	assert.ErrorIs(t, s.DeleteEntry(5), ErrNoEntry)
	assert.ErrorIs(t, s.UpdateEntry(-1, "x", nil, ""), ErrNoEntry)
	assert.Equal(t, 0, s.Find("B"))
	assert.Equal(t, -1, s.Find("nope"))

	assert.ErrorIs(t, s.DeleteByTitle("nope"), ErrNoEntry)
	require.NoError(t, s.DeleteByTitle("B"))
	assert.Empty(t, s.Entries())
}

// assertMatchesBuffer checks that the entries are exactly what the buffer parses to
func assertMatchesBuffer(t *testing.T, s *Session) {
	t.Helper()
	assert.Equal(t, journal.Parse(s.Text(), journal.Reconcile(s.Entries())), s.Entries())
}

func TestFieldEditsMatchBuffer(t *testing.T) {
	s := open(t, &memStore{})
	require.NoError(t, s.AddEntry(domain.Entry{Title: "First", Body: "one"}))
	assertMatchesBuffer(t, s)
	require.NoError(t, s.AddEntry(domain.Entry{Title: "Notes", Body: "para1\n\n\npara2\n   \npara3"}))
	assertMatchesBuffer(t, s)

	assert.Equal(t, []string{"Notes", "First"}, titles(s.Entries()))
	assert.Equal(t, "para1\npara2\npara3", s.Entries()[0].Body)

	require.NoError(t, s.UpdateEntry(1, "First", []string{"misc"}, "  indented\n\nmore"))
	assertMatchesBuffer(t, s)
	assert.Equal(t, "indented\nmore", s.Entries()[1].Body)

	require.NoError(t, s.DeleteEntry(0))
	assertMatchesBuffer(t, s)
	assert.Equal(t, []string{"First"}, titles(s.Entries()))
}

func TestFieldEditsRejectUnwritableEntries(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		categories []string
		body       string
	}{
		{"empty title", "  ", nil, "body"},
		{"title starting with hash", "#notes", nil, "body"},
		{"indented hash title", "  # notes", nil, ""},
		{"multi-line title", "Two\nlines", nil, ""},
		{"multi-line category", "Trip", []string{"tra\nvel"}, ""},
		{"body line starting with hash", "Trip", nil, "ok\n  #not a category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t, &memStore{})
			s.SetText("Keep\n#x\nbody")
			before := s.Entries()

			err := s.AddEntry(domain.Entry{Title: tt.title, Categories: tt.categories, Body: tt.body})
			assert.ErrorIs(t, err, ErrInvalidEntry)
			err = s.UpdateEntry(0, tt.title, tt.categories, tt.body)
			assert.ErrorIs(t, err, ErrInvalidEntry)

			assert.Equal(t, "Keep\n#x\nbody", s.Text())
			assert.Equal(t, before, s.Entries())
		})
	}
}

func TestFieldEditsSurviveReopen(t *testing.T) {
	st := &memStore{}
	s := open(t, st)
	require.NoError(t, s.AddEntry(domain.Entry{Title: "First", Body: "one"}))
	require.NoError(t, s.AddEntry(domain.Entry{Title: "Notes", Categories: []string{"ideas"}, Body: "para1\n\npara2"}))
	require.NoError(t, s.Save(context.Background()))

	reopened := open(t, st)
	assert.Equal(t, s.Entries(), reopened.Entries())
	assert.Equal(t, s.Text(), reopened.Text())
}

func TestSaveCountsUsage(t *testing.T) {
	st := &memStore{vocab: []domain.CategoryRecord{{Name: "travel", UsageCount: 2}}}
	s := open(t, st)
	require.NoError(t, s.AddEntry(domain.Entry{Title: "Trip", Categories: []string{"travel", "food", "travel"}}))
	require.NoError(t, s.AddEntry(domain.Entry{Title: "Gym", Categories: []string{"fitness"}}))

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, "Gym\n#fitness\n\nTrip\n#travel, #food, #travel", st.savedRaw)
	assert.Equal(t, st.savedRaw, s.Text())
	assert.False(t, s.Dirty())
	assert.Equal(t, []domain.CategoryRecord{
		{Name: "travel", UsageCount: 3},
		{Name: "fitness", UsageCount: 1},
		{Name: "food", UsageCount: 1},
	}, s.Vocabulary())
}

func TestSaveSkipsUntitledPlaceholder(t *testing.T) {
	st := &memStore{}
	s := open(t, st)
	s.SetText("Trip\n#travel")
	s.NewEntry()
	require.Len(t, s.Entries(), 1)

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, []string{"Trip"}, titles(st.doc.Entries))
}

func TestSaveKeepsUserFormatting(t *testing.T) {
	st := &memStore{}
	s := open(t, st)
	raw := "Trip\n#travel,food\nRamen\n\n\n\nGym"
	s.SetText(raw)
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, raw, st.savedRaw)
}

func TestFailedSaveRetainsState(t *testing.T) {
	st := &memStore{saveErr: errors.New("read-only")}
	s := open(t, st)
	s.SetText("Trip\n#travel")

	err := s.Save(context.Background())
	require.Error(t, err)
	assert.True(t, s.Dirty())
	assert.Equal(t, "Trip\n#travel", s.Text())
	assert.Empty(t, s.Vocabulary())

	st.saveErr = nil
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, 1, st.saves)
}

func TestSuggestAndComplete(t *testing.T) {
	st := &memStore{vocab: []domain.CategoryRecord{
		{Name: "travel", UsageCount: 1},
		{Name: "food", UsageCount: 4},
		{Name: "traveling", UsageCount: 2},
	}}
	s := open(t, st)
	assert.Equal(t, []string{"food", "traveling", "travel"}, s.Suggest(""))

	s.SetText("Trip\n#food, #tra")
	assert.Equal(t, []string{"travel", "traveling"}, s.SuggestAt(len(s.Text())))
	assert.Nil(t, s.SuggestAt(2))

	edit := s.Complete(len(s.Text()), "travel")
	assert.Equal(t, "Trip\n#food, #travel", edit.Text)
	assert.Equal(t, len(edit.Text), edit.Cursor)
	assert.Equal(t, []string{"food", "travel"}, s.Entries()[0].Categories)
}
