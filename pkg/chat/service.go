// Package chat runs the ask/answer loop shared by every front-end: read the
// session history, ask the completion client, then record both turns.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/abdhe/kelly-poet/pkg/conversation"
	"github.com/abdhe/kelly-poet/pkg/persona"
)

// ErrEmptyPrompt is returned when the user submits nothing but whitespace.
var ErrEmptyPrompt = errors.New("please enter a question or statement first")

// Completer produces one reply for a prompt given the prior turns.
// *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, persona string, history conversation.History, prompt string) (string, error)
}

// Service owns the conversation store on behalf of front-ends.
type Service struct {
	store   conversation.Store
	client  Completer
	persona string
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Service.
type Option func(*Service)

// WithPersona overrides the system instruction.
func WithPersona(p string) Option {
	return func(s *Service) { s.persona = p }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "chat").Logger() }
}

// NewService creates a Service using the Kelly persona.
func NewService(store conversation.Store, client Completer, opts ...Option) *Service {
	s := &Service{
		store:   store,
		client:  client,
		persona: persona.Kelly,
		log:     zerolog.Nop(),
		locks:   make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a new, empty session.
func (s *Service) Start(ctx context.Context) (string, error) {
	id, err := s.store.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("chat: start session: %w", err)
	}
	s.log.Info().Str("session", id).Msg("session started")
	return id, nil
}

// History returns the recorded turns of a session.
func (s *Service) History(ctx context.Context, sessionID string) (conversation.History, error) {
	h, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: history: %w", err)
	}
	return h, nil
}

// Ask sends text to the model with the session's prior turns and returns the
// reply. The user and assistant turns are recorded together only on success;
// a failed call leaves the history untouched. Calls on the same session are
// serialized so turns never interleave.
func (s *Service) Ask(ctx context.Context, sessionID, text string) (string, error) {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	unlock := s.lock(sessionID)
	defer unlock()

	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("chat: load history: %w", err)
	}

	reply, err := s.client.Complete(ctx, s.persona, history, prompt)
	if err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("ask failed")
		return "", err
	}

	if err := s.store.Append(ctx, sessionID, conversation.UserTurn(prompt), conversation.AssistantTurn(reply)); err != nil {
		return "", fmt.Errorf("chat: record turns: %w", err)
	}
	s.log.Debug().Str("session", sessionID).Int("turns", len(history)+2).Msg("exchange recorded")
	return reply, nil
}

func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}
