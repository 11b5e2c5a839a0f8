package conversation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Sessions live until the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]History
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]History)}
}

func (m *MemoryStore) Create(_ context.Context) (string, error) {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = History{}
	return id, nil
}

func (m *MemoryStore) History(_ context.Context, sessionID string) (History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h.Clone(), nil
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	if err := History(turns).Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	m.sessions[sessionID] = append(h, turns...)
	return nil
}

var _ Store = (*MemoryStore)(nil)
