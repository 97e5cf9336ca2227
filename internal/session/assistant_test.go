package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/jot/internal/domain"
)

type fakeAssistant struct {
	reply   string
	err     error
	journal string
	calls   int
}

func (f *fakeAssistant) Ask(_ context.Context, _ string, journal string) (string, error) {
	f.calls++
	f.journal = journal
	return f.reply, f.err
}

func TestAskRecordsConversation(t *testing.T) {
	st := &memStore{}
	a := &fakeAssistant{reply: "You ate ramen."}
	s := open(t, st, WithAssistant(a))
	s.SetText("Trip\n#travel\nRamen\n\nGym\n#fitness")

	reply, err := s.Ask(context.Background(), " What did I eat? ", 1)
	require.NoError(t, err)
	assert.Equal(t, "You ate ramen.", reply)
	assert.Contains(t, a.journal, "Title: Gym")
	assert.NotContains(t, a.journal, "Title: Trip")

	convo := s.Conversation()
	require.Len(t, convo, 2)
	assert.Equal(t, domain.RoleUser, convo[0].Role)
	assert.Equal(t, "What did I eat?", convo[0].Content)
	assert.Equal(t, domain.RoleAssistant, convo[1].Role)
	assert.NotEmpty(t, convo[0].ID)
	assert.Len(t, st.msgs, 2)
}

func TestAskFailureLeavesStateAlone(t *testing.T) {
	st := &memStore{}
	failure := errors.New("network down")
	a := &fakeAssistant{err: failure}
	s := open(t, st, WithAssistant(a))
	s.SetText("Trip\n#travel")
	before := s.Text()

	_, err := s.Ask(context.Background(), "q", 0)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, before, s.Text())
	assert.Empty(t, s.Conversation())
	assert.Empty(t, st.msgs)
}

func TestAskWithoutAssistant(t *testing.T) {
	s := open(t, &memStore{})
	_, err := s.Ask(context.Background(), "q", 0)
	assert.ErrorIs(t, err, ErrNoAssistant)
}
