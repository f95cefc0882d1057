package consent

import (
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("consent: credential not found")
var ErrAlreadyRevoked = errors.New("consent: credential already revoked")

// Store keeps issued credentials. Credentials are never deleted, revocation
// is a one-way flag flip guarded by a compare-and-swap so concurrent revokes
// resolve deterministically.
type Store interface {
	Get(id string) (*Credential, error)
	Put(credential *Credential) error
	CompareAndSwapRevoked(id string, at time.Time) error
	All() []*Credential
}

type memoryStore struct {
	mu          sync.RWMutex
	credentials map[string]*Credential
}

// NewMemoryStore returns an in-memory credential store.
func NewMemoryStore() Store {
	return &memoryStore{credentials: map[string]*Credential{}}
}

func (s *memoryStore) Get(id string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *credential
	return &clone, nil
}

func (s *memoryStore) Put(credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *credential
	s.credentials[credential.ID] = &clone
	return nil
}

// CompareAndSwapRevoked flips the revocation flag, failing if it was already
// set. The first revoke wins, a second attempt observes ErrAlreadyRevoked.
func (s *memoryStore) CompareAndSwapRevoked(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[id]
	if !ok {
		return ErrNotFound
	}
	if credential.Revoked {
		return ErrAlreadyRevoked
	}
	credential.Revoked = true
	credential.RevokedAt = &at
	return nil
}

func (s *memoryStore) All() []*Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Credential, 0, len(s.credentials))
	for _, credential := range s.credentials {
		clone := *credential
		out = append(out, &clone)
	}
	return out
}
