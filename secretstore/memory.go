package secretstore

import (
	"context"
	"sync"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// MemoryStore is a map-backed SecretStore for tests. Contents are lost on
// process exit.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[interfaces.SecretID][]byte

	// FailSaves makes every Save return ErrStoreUnavailable, for testing
	// persistence failure paths.
	FailSaves bool
}

// NewMemoryStore creates an empty in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[interfaces.SecretID][]byte)}
}

// Load implements interfaces.SecretStore.
func (s *MemoryStore) Load(ctx context.Context, id interfaces.SecretID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.secrets[id]
	if !ok {
		return nil, interfaces.ErrSecretNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save implements interfaces.SecretStore.
func (s *MemoryStore) Save(ctx context.Context, id interfaces.SecretID, data []byte) error {
	if s.FailSaves {
		return interfaces.ErrStoreUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.secrets[id] = stored
	return nil
}

// Delete implements interfaces.SecretStore.
func (s *MemoryStore) Delete(ctx context.Context, id interfaces.SecretID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, id)
	return nil
}
