// Package session is the controller for one open journal document. It owns
// the raw buffer, the entries derived from it, the category vocabulary and
// the edit mode, and talks to the store and the assistant it is given.
//
// A Session is not safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/jot/internal/category"
	"github.com/pbaille/jot/internal/domain"
	"github.com/pbaille/jot/internal/journal"
)

// Store persists documents, the category vocabulary and the conversation log
type Store interface {
	LoadDocument(ctx context.Context, name string) (*domain.Document, error)
	SaveDocument(ctx context.Context, name, raw string, entries []domain.Entry) error
	Vocabulary(ctx context.Context) ([]domain.CategoryRecord, error)
	AppendMessage(ctx context.Context, document string, msg domain.Message) error
	Messages(ctx context.Context, document string) ([]domain.Message, error)
}

// Assistant answers a question given a rendering of recent entries
type Assistant interface {
	Ask(ctx context.Context, question, journal string) (string, error)
}

var (
	// ErrNoEntry is returned for an entry index or title that does not exist
	ErrNoEntry = errors.New("no such entry")
	// ErrNoAssistant is returned by Ask when the session has no assistant
	ErrNoAssistant = errors.New("assistant not configured")
	// ErrInvalidEntry is returned by field edits that the buffer format
	// cannot hold, such as a title starting with '#'
	ErrInvalidEntry = errors.New("invalid entry")
)

// Session is one open document
type Session struct {
	name      string
	store     Store
	assistant Assistant
	log       *zap.Logger
	now       func() time.Time

	raw     string
	entries []domain.Entry
	loaded  journal.Timestamps
	vocab   []domain.CategoryRecord
	mode    journal.EditMode
	cursor  int
	convo   []domain.Message
	dirty   bool
}

// Option configures a Session
type Option func(*Session)

// WithAssistant enables Ask
func WithAssistant(a Assistant) Option {
	return func(s *Session) { s.assistant = a }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock replaces time.Now for new entry timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Open loads the named document. Load failures are logged and leave the
// session with an empty buffer; Open itself never fails.
func Open(ctx context.Context, store Store, name string, opts ...Option) *Session {
	s := &Session{
		name:   name,
		store:  store,
		log:    zap.NewNop(),
		now:    time.Now,
		loaded: journal.Timestamps{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("document", name))

	doc, err := store.LoadDocument(ctx, name)
	if err != nil {
		s.log.Warn("load document failed, starting empty", zap.Error(err))
	} else {
		s.raw = doc.RawText
		s.loaded = journal.Reconcile(doc.Entries)
	}
	s.entries = s.parse(s.raw, nil)

	if s.vocab, err = store.Vocabulary(ctx); err != nil {
		s.log.Warn("load categories failed", zap.Error(err))
	}
	if s.convo, err = store.Messages(ctx, name); err != nil {
		s.log.Warn("load conversation failed", zap.Error(err))
	}

	s.log.Debug("document opened", zap.Int("entries", len(s.entries)), zap.Int("bytes", len(s.raw)))
	return s
}

// parse derives the entries of raw. Titles keep the timestamps they had in
// the loaded document or in prev, prev taking precedence.
func (s *Session) parse(raw string, prev []domain.Entry) []domain.Entry {
	known := s.loaded.Merge(journal.Reconcile(prev))
	return journal.Parser{Now: s.now}.Parse(raw, known)
}

// Name of the open document
func (s *Session) Name() string { return s.name }

// Text is the raw buffer
func (s *Session) Text() string { return s.raw }

// Cursor is the byte offset left by the last keystroke or new-entry action
func (s *Session) Cursor() int { return s.cursor }

// TitleMode reports whether the next Enter scaffolds a category line
func (s *Session) TitleMode() bool { return s.mode.TitleMode }

// Dirty reports unsaved changes
func (s *Session) Dirty() bool { return s.dirty }

// Entries returns a copy of the current entries, newest first
func (s *Session) Entries() []domain.Entry {
	out := make([]domain.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Vocabulary returns the category records known to the store
func (s *Session) Vocabulary() []domain.CategoryRecord {
	out := make([]domain.CategoryRecord, len(s.vocab))
	copy(out, s.vocab)
	return out
}

// Conversation returns the assistant log, oldest first
func (s *Session) Conversation() []domain.Message {
	out := make([]domain.Message, len(s.convo))
	copy(out, s.convo)
	return out
}

// SetText replaces the whole buffer and re-derives the entries
func (s *Session) SetText(raw string) {
	if raw == s.raw {
		return
	}
	s.entries = s.parse(raw, s.entries)
	s.raw = raw
	s.dirty = true
}

// Key applies one keystroke at cursor through the edit-mode machine
func (s *Session) Key(cursor int, k journal.Key) journal.Edit {
	edit := s.mode.Key(s.raw, cursor, k)
	s.SetText(edit.Text)
	s.cursor = edit.Cursor
	return edit
}

// Type feeds every rune of text through Key starting at cursor
func (s *Session) Type(cursor int, text string) journal.Edit {
	edit := journal.Edit{Text: s.raw, Cursor: cursor}
	for _, r := range text {
		e := s.Key(edit.Cursor, journal.Key(r))
		e.Intercepted = e.Intercepted || edit.Intercepted
		edit = e
	}
	return edit
}

// Roles classifies every buffer line for a cursor at the given offset
func (s *Session) Roles(cursor int) []journal.Role {
	return journal.ClassifyText(s.raw, cursor, s.mode.TitleMode)
}

// NewEntry opens an empty placeholder line at the top of the buffer and
// turns title-mode on. The cursor is left on the placeholder.
func (s *Session) NewEntry() {
	s.mode.StartEntry()
	s.cursor = 0
	if strings.TrimSpace(s.raw) == "" {
		s.SetText("")
		return
	}
	s.SetText("\n\n" + s.raw)
}

// AddEntry inserts a complete entry. A zero timestamp means now.
func (s *Session) AddEntry(e domain.Entry) error {
	n, err := normalize(e.Title, e.Categories, e.Body)
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	n.Timestamp = e.Timestamp
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	s.rewrite(append(s.Entries(), n))
	return nil
}

// UpdateEntry replaces the fields of entry i. A changed title is a new
// identity: the entry takes the timestamp on record for the new title, or now.
func (s *Session) UpdateEntry(i int, title string, categories []string, body string) error {
	if i < 0 || i >= len(s.entries) {
		return fmt.Errorf("update entry %d: %w", i, ErrNoEntry)
	}
	n, err := normalize(title, categories, body)
	if err != nil {
		return fmt.Errorf("update entry %d: %w", i, err)
	}

	edited := s.Entries()
	n.Timestamp = edited[i].Timestamp
	if n.Title != edited[i].Title {
		known := s.loaded.Merge(journal.Reconcile(s.entries))
		if stamp, ok := known[n.Title]; ok {
			n.Timestamp = stamp
		} else {
			n.Timestamp = s.now()
		}
	}
	edited[i] = n

	s.rewrite(edited)
	return nil
}

// DeleteEntry removes entry i
func (s *Session) DeleteEntry(i int) error {
	if i < 0 || i >= len(s.entries) {
		return fmt.Errorf("delete entry %d: %w", i, ErrNoEntry)
	}
	edited := s.Entries()
	s.rewrite(append(edited[:i], edited[i+1:]...))
	return nil
}

// DeleteByTitle removes the first entry titled title
func (s *Session) DeleteByTitle(title string) error {
	i := s.Find(title)
	if i < 0 {
		return fmt.Errorf("delete %q: %w", title, ErrNoEntry)
	}
	return s.DeleteEntry(i)
}

// Find returns the index of the first entry titled title, or -1
func (s *Session) Find(title string) int {
	title = strings.TrimSpace(title)
	for i, e := range s.entries {
		if e.Title == title {
			return i
		}
	}
	return -1
}

// rewrite serializes edited into the buffer and parses it back, so the
// entries stay what the buffer says they are.
func (s *Session) rewrite(edited []domain.Entry) {
	sort.SliceStable(edited, func(i, j int) bool {
		return edited[i].Timestamp.After(edited[j].Timestamp)
	})
	s.raw = journal.Serialize(edited)
	s.entries = s.parse(s.raw, edited)
	s.dirty = true
}

// Save persists the buffer as typed together with its entries. An untitled
// placeholder never parses into an entry, so nothing untitled is stored.
// On failure the in-memory state is left untouched so the caller can retry.
func (s *Session) Save(ctx context.Context) error {
	if err := s.store.SaveDocument(ctx, s.name, s.raw, s.entries); err != nil {
		s.log.Error("save document failed", zap.Error(err))
		return fmt.Errorf("save %s: %w", s.name, err)
	}

	s.loaded = journal.Reconcile(s.entries)
	s.vocab = category.Apply(s.vocab, s.entries)
	s.dirty = false
	s.log.Info("document saved", zap.Int("entries", len(s.entries)))
	return nil
}

// Suggest ranks the vocabulary for query
func (s *Session) Suggest(query string) []string {
	return category.Suggestions(query, s.vocab)
}

// SuggestAt ranks the vocabulary for the category fragment under cursor.
// It returns nil when cursor is not on a category line.
func (s *Session) SuggestAt(cursor int) []string {
	frag, _, ok := category.Fragment(s.raw, cursor)
	if !ok {
		return nil
	}
	return category.Suggestions(frag, s.vocab)
}

// Complete replaces the category fragment under cursor with name
func (s *Session) Complete(cursor int, name string) journal.Edit {
	prev := s.raw
	text, c := category.Complete(prev, cursor, name)
	s.SetText(text)
	s.cursor = c
	return journal.Edit{Text: text, Cursor: c, Intercepted: text != prev}
}

// normalize shapes edited fields into an entry the buffer can hold. Blank
// body lines are dropped because a blank line followed by text starts a new
// entry; anything else that would not read back unchanged is rejected.
func normalize(title string, categories []string, body string) (domain.Entry, error) {
	e := domain.Entry{
		Title:      strings.TrimSpace(title),
		Categories: cleanCategories(categories),
	}

	switch {
	case e.Title == "":
		return e, fmt.Errorf("%w: title is empty", ErrInvalidEntry)
	case strings.ContainsAny(e.Title, "\r\n"):
		return e, fmt.Errorf("%w: title spans several lines", ErrInvalidEntry)
	case journal.IsCategoryLine(e.Title):
		return e, fmt.Errorf("%w: title %q starts with '#'", ErrInvalidEntry, e.Title)
	}
	for _, c := range e.Categories {
		if strings.ContainsAny(c, "\r\n") {
			return e, fmt.Errorf("%w: category %q spans several lines", ErrInvalidEntry, c)
		}
	}

	var lines []string
	for _, line := range journal.SplitLines(strings.TrimSpace(body)) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if journal.IsCategoryLine(line) {
			return e, fmt.Errorf("%w: body line %q starts with '#'", ErrInvalidEntry, strings.TrimSpace(line))
		}
		lines = append(lines, line)
	}
	e.Body = strings.Join(lines, "\n")
	return e, nil
}

func cleanCategories(in []string) []string {
	out := []string{}
	for _, c := range in {
		out = append(out, journal.ParseCategories("#"+c)...)
	}
	return out
}
