package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/jot/internal/category"
	"github.com/pbaille/jot/internal/domain"
)

//go:embed schema.sql
var schema string

// categorySeparator joins an entry's categories into one column
const categorySeparator = ","

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadDocument returns the named document with the entries saved alongside
// it. A document that was never saved comes back empty with no error.
func (s *Store) LoadDocument(ctx context.Context, name string) (*domain.Document, error) {
	doc := domain.Document{Name: name}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, raw_text, updated_at FROM documents WHERE name = ?",
		name,
	).Scan(&doc.ID, &doc.RawText, &doc.Updated)
	if err == sql.ErrNoRows {
		return &doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT title, categories, body, created_at FROM entries WHERE document_id = ? ORDER BY position",
		doc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Entry
		var cats string
		if err := rows.Scan(&e.Title, &cats, &e.Body, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Categories = splitCategories(cats)
		doc.Entries = append(doc.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return &doc, nil
}

// SaveDocument replaces the named document's raw text and entries and adds
// one usage per (entry, category) pair to the vocabulary, in one transaction.
func (s *Store) SaveDocument(ctx context.Context, name, raw string, entries []domain.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	docID, err := documentID(ctx, tx, name)
	if err != nil {
		return err
	}
	if docID == "" {
		docID = uuid.New().String()
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (id, name, raw_text, updated_at) VALUES (?, ?, ?, ?)",
			docID, name, raw, now,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET raw_text = ?, updated_at = ? WHERE id = ?",
			raw, now, docID,
		)
	}
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE document_id = ?", docID); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	for i, e := range entries {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO entries (document_id, position, title, categories, body, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			docID, i, e.Title, strings.Join(e.Categories, categorySeparator), e.Body, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	tally := category.Tally(entries)
	for _, name := range category.FirstSeen(entries) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (name, usage_count, created_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET usage_count = usage_count + excluded.usage_count
		`, name, tally[name], now)
		if err != nil {
			return fmt.Errorf("count category %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Vocabulary returns every category in first-use order
func (s *Store) Vocabulary(ctx context.Context) ([]domain.CategoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, usage_count FROM categories ORDER BY created_at, rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var records []domain.CategoryRecord
	for rows.Next() {
		var r domain.CategoryRecord
		if err := rows.Scan(&r.Name, &r.UsageCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// AppendMessage records one conversation turn for the named document. The
// document row is created if the journal was never saved.
func (s *Store) AppendMessage(ctx context.Context, document string, msg domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	docID, err := documentID(ctx, tx, document)
	if err != nil {
		return err
	}
	if docID == "" {
		docID = uuid.New().String()
		_, err := tx.ExecContext(ctx,
			"INSERT INTO documents (id, name, raw_text, updated_at) VALUES (?, ?, '', ?)",
			docID, document, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, document_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, docID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return tx.Commit()
}

// Messages returns the conversation log of the named document, oldest first
func (s *Store) Messages(ctx context.Context, document string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.role, m.content, m.created_at
		FROM messages m
		JOIN documents d ON d.id = m.document_id
		WHERE d.name = ?
		ORDER BY m.created_at, m.rowid
	`, document)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

func documentID(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find document: %w", err)
	}
	return id, nil
}

func splitCategories(joined string) []string {
	cats := []string{}
	for _, c := range strings.Split(joined, categorySeparator) {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	return cats
}
