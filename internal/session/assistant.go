package session

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pbaille/jot/internal/domain"
	"github.com/pbaille/jot/internal/journal"
)

// DefaultContextEntries is how many recent entries Ask shows the assistant
const DefaultContextEntries = 10

// AssistantContext renders the n most recent entries for the assistant
func (s *Session) AssistantContext(n int) string {
	if n <= 0 {
		n = DefaultContextEntries
	}
	return journal.AssistantContext(s.entries, n)
}

// Ask sends question with the n most recent entries and records the exchange
// in the conversation log. Assistant failures are returned as-is; they leave
// the journal and the log untouched.
func (s *Session) Ask(ctx context.Context, question string, n int) (string, error) {
	if s.assistant == nil {
		return "", ErrNoAssistant
	}

	reply, err := s.assistant.Ask(ctx, question, s.AssistantContext(n))
	if err != nil {
		s.log.Warn("assistant request failed", zap.Error(err))
		return "", err
	}

	s.Record(ctx, question, reply)
	return reply, nil
}

// Record appends a question and its reply to the conversation log. Failing to
// persist the log is logged and otherwise ignored.
func (s *Session) Record(ctx context.Context, question, reply string) {
	now := s.now()
	turns := []domain.Message{
		{ID: uuid.New().String(), Role: domain.RoleUser, Content: strings.TrimSpace(question), CreatedAt: now},
		{ID: uuid.New().String(), Role: domain.RoleAssistant, Content: reply, CreatedAt: now},
	}
	for _, m := range turns {
		if err := s.store.AppendMessage(ctx, s.name, m); err != nil {
			s.log.Warn("persist conversation failed", zap.Error(err))
		}
		s.convo = append(s.convo, m)
	}
}
