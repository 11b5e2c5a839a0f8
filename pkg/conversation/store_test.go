package conversation_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/abdhe/kelly-poet/pkg/conversation"
)

// storeSuite runs the same contract checks against every Store implementation.
type storeSuite struct {
	suite.Suite
	newStore func(t *testing.T) conversation.Store
	store    conversation.Store
	ctx      context.Context
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *storeSuite) TestCreateStartsEmpty() {
	id, err := s.store.Create(s.ctx)
	s.Require().NoError(err)
	s.NotEmpty(id)

	h, err := s.store.History(s.ctx, id)
	s.Require().NoError(err)
	s.Empty(h)
}

func (s *storeSuite) TestAppendKeepsOrder() {
	id, err := s.store.Create(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Append(s.ctx, id, conversation.UserTurn("q1"), conversation.AssistantTurn("a1")))
	s.Require().NoError(s.store.Append(s.ctx, id, conversation.UserTurn("q2")))

	h, err := s.store.History(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(conversation.History{
		{Role: conversation.RoleUser, Content: "q1"},
		{Role: conversation.RoleAssistant, Content: "a1"},
		{Role: conversation.RoleUser, Content: "q2"},
	}, h)
}

func (s *storeSuite) TestSessionsAreIsolated() {
	a, err := s.store.Create(s.ctx)
	s.Require().NoError(err)
	b, err := s.store.Create(s.ctx)
	s.Require().NoError(err)
	s.NotEqual(a, b)

	s.Require().NoError(s.store.Append(s.ctx, a, conversation.UserTurn("only in a")))

	hb, err := s.store.History(s.ctx, b)
	s.Require().NoError(err)
	s.Empty(hb)
}

func (s *storeSuite) TestHistoryIsACopy() {
	id, err := s.store.Create(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(s.ctx, id, conversation.UserTurn("original")))

	h, err := s.store.History(s.ctx, id)
	s.Require().NoError(err)
	h[0].Content = "changed"

	again, err := s.store.History(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("original", again[0].Content)
}

func (s *storeSuite) TestUnknownSession() {
	_, err := s.store.History(s.ctx, "nope")
	s.ErrorIs(err, conversation.ErrSessionNotFound)

	err = s.store.Append(s.ctx, "nope", conversation.UserTurn("x"))
	s.ErrorIs(err, conversation.ErrSessionNotFound)
}

func (s *storeSuite) TestRejectsUnknownRole() {
	id, err := s.store.Create(s.ctx)
	s.Require().NoError(err)

	err = s.store.Append(s.ctx, id, conversation.Turn{Role: "system", Content: "x"})
	s.ErrorIs(err, conversation.ErrInvalidRole)

	h, err := s.store.History(s.ctx, id)
	s.Require().NoError(err)
	s.Empty(h)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(*testing.T) conversation.Store {
		return conversation.NewMemoryStore()
	}})
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(t *testing.T) conversation.Store {
		mr := miniredis.RunT(t)
		return conversation.NewRedisStore(mr.Addr(), "", 0, time.Hour)
	}})
}

func TestRedisStore_SessionExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	store := conversation.NewRedisStore(mr.Addr(), "", 0, time.Minute)
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, id, conversation.UserTurn("hi")))

	mr.FastForward(30 * time.Second)
	require.NoError(t, store.Append(ctx, id, conversation.AssistantTurn("hello")))

	// The second append refreshed the TTL.
	mr.FastForward(45 * time.Second)
	h, err := store.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, h, 2)

	mr.FastForward(2 * time.Minute)
	_, err = store.History(ctx, id)
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
}

func TestRedisStore_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	store := conversation.NewRedisStore(mr.Addr(), "", 0, time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	assert.NoError(t, store.Ping(context.Background()))
}

func TestHistory_Validate(t *testing.T) {
	h := conversation.History{conversation.UserTurn("a"), {Role: "tool", Content: "b"}}
	err := h.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, conversation.ErrInvalidRole)
	assert.Contains(t, err.Error(), "turn 1")
}

func TestHistory_CloneNil(t *testing.T) {
	var h conversation.History
	assert.Nil(t, h.Clone())
}
