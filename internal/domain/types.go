package domain

import "time"

// Entry is one journal record. Entries carry no identifier: across edits an
// entry is recognised by its title text alone.
type Entry struct {
	Title      string    `json:"title" yaml:"title"`
	Categories []string  `json:"categories" yaml:"categories,omitempty"`
	Body       string    `json:"body,omitempty" yaml:"body,omitempty"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// Document is a named raw text buffer and the entries derived from it
type Document struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	RawText string    `json:"raw_text"`
	Entries []Entry   `json:"entries"`
	Updated time.Time `json:"updated_at"`
}

// CategoryRecord is a vocabulary word with the number of saved entries using it
type CategoryRecord struct {
	Name       string `json:"name"`
	UsageCount int    `json:"usage_count"`
}

// Role of a message in the assistant conversation log
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation with the remote assistant
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
