package escrow

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("escrow: not found")
var ErrCommitmentCollision = errors.New("escrow: hash-lock commitment already in use")
var ErrConsentBound = errors.New("escrow: consent already bound to a live escrow")
var ErrWrongState = errors.New("escrow: transition from wrong state")

// Store is the registry of escrows. All state transitions go through
// CompareAndSwapState so concurrent fulfillment and cancellation attempts on
// the same escrow resolve deterministically: the first to satisfy the
// precondition wins, the second observes the new state and fails cleanly.
type Store interface {
	Get(id string) (*Escrow, error)
	Put(escrow *Escrow) error
	CompareAndSwapState(id string, expect Status, next Status, mutate func(*Escrow)) (*Escrow, error)
	ByConsent(consentID string) (*Escrow, error)
}

type memoryStore struct {
	mu           sync.RWMutex
	escrows      map[string]*Escrow
	byCommitment map[string]string
	byConsent    map[string]string
}

// NewMemoryStore returns an in-memory escrow store with uniqueness indexes
// for the hash-lock commitment and the bound consent.
func NewMemoryStore() Store {
	return &memoryStore{
		escrows:      map[string]*Escrow{},
		byCommitment: map[string]string{},
		byConsent:    map[string]string{},
	}
}

func (s *memoryStore) Get(id string) (*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	escrow, ok := s.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *escrow
	return &clone, nil
}

// Put registers a new escrow. A commitment collision is a fatal precondition
// failure, and a consent may be bound to at most one live escrow at a time.
func (s *memoryStore) Put(escrow *Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCommitment[escrow.Condition.Commitment]; exists {
		return ErrCommitmentCollision
	}
	if _, exists := s.byConsent[escrow.ConsentID]; exists {
		return ErrConsentBound
	}
	clone := *escrow
	s.escrows[escrow.ID] = &clone
	s.byCommitment[escrow.Condition.Commitment] = escrow.ID
	s.byConsent[escrow.ConsentID] = escrow.ID
	return nil
}

func (s *memoryStore) CompareAndSwapState(id string, expect Status, next Status, mutate func(*Escrow)) (*Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	escrow, ok := s.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if escrow.Status != expect {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrWrongState, id, escrow.Status, expect)
	}
	escrow.Status = next
	if mutate != nil {
		mutate(escrow)
	}
	if next.Terminal() {
		// the consent becomes free for a new escrow once this one closes
		delete(s.byConsent, escrow.ConsentID)
	}
	clone := *escrow
	return &clone, nil
}

func (s *memoryStore) ByConsent(consentID string) (*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byConsent[consentID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s.escrows[id]
	return &clone, nil
}
