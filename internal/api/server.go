package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pbaille/jot/internal/assistant"
	"github.com/pbaille/jot/internal/domain"
	"github.com/pbaille/jot/internal/journal"
	"github.com/pbaille/jot/internal/session"
)

// Server exposes one open journal over JSON HTTP
type Server struct {
	mu             sync.Mutex
	sess           *session.Session
	assistant      session.Assistant
	log            *zap.Logger
	addr           string
	contextEntries int
}

// New creates a new API server. assistant may be nil.
func New(sess *session.Session, asst session.Assistant, log *zap.Logger, addr string, contextEntries int) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{sess: sess, assistant: asst, log: log, addr: addr, contextEntries: contextEntries}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Document
	mux.HandleFunc("GET /document", s.getDocument)
	mux.HandleFunc("PUT /document", s.putDocument)
	mux.HandleFunc("POST /document/save", s.saveDocument)
	mux.HandleFunc("POST /keys", s.keys)
	mux.HandleFunc("GET /lines", s.lines)

	// Entries
	mux.HandleFunc("GET /entries", s.listEntries)
	mux.HandleFunc("POST /entries", s.addEntry)
	mux.HandleFunc("POST /entries/new", s.newEntry)
	mux.HandleFunc("PUT /entries/{index}", s.updateEntry)
	mux.HandleFunc("DELETE /entries/{index}", s.deleteEntry)

	// Categories
	mux.HandleFunc("GET /categories", s.listCategories)
	mux.HandleFunc("GET /categories/suggest", s.suggest)

	// Assistant
	mux.HandleFunc("POST /assistant", s.ask)
	mux.HandleFunc("GET /assistant/messages", s.messages)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.log.Info("starting server", zap.String("addr", s.addr), zap.String("document", s.sess.Name()))
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DocumentResponse is the state of the open document
type DocumentResponse struct {
	Name      string         `json:"name"`
	Text      string         `json:"text"`
	Entries   []domain.Entry `json:"entries"`
	Roles     []journal.Role `json:"roles"`
	Cursor    int            `json:"cursor"`
	TitleMode bool           `json:"title_mode"`
	Dirty     bool           `json:"dirty"`
}

// document must be called with s.mu held
func (s *Server) document() DocumentResponse {
	cursor := s.sess.Cursor()
	return DocumentResponse{
		Name:      s.sess.Name(),
		Text:      s.sess.Text(),
		Entries:   s.sess.Entries(),
		Roles:     s.sess.Roles(cursor),
		Cursor:    cursor,
		TitleMode: s.sess.TitleMode(),
		Dirty:     s.sess.Dirty(),
	}
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.document())
}

// PutDocumentRequest replaces the whole buffer
type PutDocumentRequest struct {
	Text string `json:"text"`
}

func (s *Server) putDocument(w http.ResponseWriter, r *http.Request) {
	var req PutDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.SetText(req.Text)
	writeJSON(w, http.StatusOK, s.document())
}

func (s *Server) saveDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sess.Save(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.document())
}

// KeysRequest types text at cursor, one keystroke per rune
type KeysRequest struct {
	Cursor int    `json:"cursor"`
	Text   string `json:"text"`
}

// KeysResponse is the edit result plus the fresh line roles
type KeysResponse struct {
	Edit      journal.Edit   `json:"edit"`
	Roles     []journal.Role `json:"roles"`
	TitleMode bool           `json:"title_mode"`
}

func (s *Server) keys(w http.ResponseWriter, r *http.Request) {
	var req KeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edit := s.sess.Type(req.Cursor, req.Text)
	writeJSON(w, http.StatusOK, KeysResponse{
		Edit:      edit,
		Roles:     s.sess.Roles(edit.Cursor),
		TitleMode: s.sess.TitleMode(),
	})
}

func (s *Server) lines(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := s.sess.Cursor()
	if c := r.URL.Query().Get("cursor"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cursor must be an integer")
			return
		}
		cursor = n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cursor": cursor,
		"roles":  s.sess.Roles(cursor),
	})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	s.mu.Lock()
	entries := s.sess.Entries()
	s.mu.Unlock()

	total := len(entries)
	if limit > 0 && limit < total {
		entries = entries[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

// EntryRequest carries the editable fields of an entry
type EntryRequest struct {
	Title      string   `json:"title"`
	Categories []string `json:"categories"`
	Body       string   `json:"body"`
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sess.AddEntry(domain.Entry{Title: req.Title, Categories: req.Categories, Body: req.Body}); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.document())
}

func (s *Server) newEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.NewEntry()
	writeJSON(w, http.StatusOK, s.document())
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sess.UpdateEntry(i, req.Title, req.Categories, req.Body); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.document())
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sess.DeleteEntry(i); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.document())
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": s.sess.Vocabulary(),
	})
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var suggestions []string
	if c := r.URL.Query().Get("cursor"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cursor must be an integer")
			return
		}
		suggestions = s.sess.SuggestAt(n)
	} else {
		suggestions = s.sess.Suggest(r.URL.Query().Get("q"))
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
	})
}

// AskRequest is a question for the assistant
type AskRequest struct {
	Question string `json:"question"`
	Entries  int    `json:"entries,omitempty"`
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, session.ErrNoAssistant.Error())
		return
	}
	n := req.Entries
	if n <= 0 {
		n = s.contextEntries
	}

	// The remote call runs without the lock so edits are not blocked by it
	s.mu.Lock()
	journalContext := s.sess.AssistantContext(n)
	s.mu.Unlock()

	reply, err := s.assistant.Ask(r.Context(), req.Question, journalContext)
	if err != nil {
		s.log.Warn("assistant request failed", zap.Error(err))
		status := http.StatusBadGateway
		var aerr *assistant.Error
		if errors.As(err, &aerr) && aerr.Kind == assistant.MissingCredential {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	s.mu.Lock()
	s.sess.Record(r.Context(), req.Question, reply)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": s.sess.Conversation(),
	})
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoEntry):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, session.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
