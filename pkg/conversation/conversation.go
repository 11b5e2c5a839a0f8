// Package conversation holds the ordered, session-scoped log of chat turns.
package conversation

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is a single message in a conversation. Turns are never mutated once created.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn returns a turn spoken by the user.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn returns a turn spoken by the assistant.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// History is an ordered, chronological sequence of turns for one session.
type History []Turn

// Clone returns an independent copy of h.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Validate returns an error naming the first turn whose role is not user or assistant.
func (h History) Validate() error {
	for i, t := range h {
		if !t.Role.Valid() {
			return fmt.Errorf("conversation: turn %d: %w %q", i, ErrInvalidRole, t.Role)
		}
	}
	return nil
}

var (
	// ErrSessionNotFound is returned for ids that were never created or have expired.
	ErrSessionNotFound = errors.New("conversation: session not found")

	// ErrInvalidRole is returned when a turn carries a role other than user or assistant.
	ErrInvalidRole = errors.New("invalid role")
)

// Store is an append-only log of turns keyed by session id.
type Store interface {
	// Create starts an empty session and returns its id.
	Create(ctx context.Context) (string, error)

	// History returns a copy of the turns recorded for the session, oldest first.
	History(ctx context.Context, sessionID string) (History, error)

	// Append records turns at the end of the session in the given order.
	Append(ctx context.Context, sessionID string, turns ...Turn) error
}
