package receipt

import (
	"context"
	"sync"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// InMemoryTokenStore keeps tokens in process memory. The token id counter is
// owned by the store. Writes register compensations via tx.OnRollback so a
// failed transaction restores the prior records.
type InMemoryTokenStore struct {
	mu        sync.RWMutex
	nextID    uint64
	tokens    map[id.TokenID]*Token
	byDeposit map[id.DepositID]id.TokenID
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		nextID:    1,
		tokens:    make(map[id.TokenID]*Token),
		byDeposit: make(map[id.DepositID]id.TokenID),
	}
}

func (s *InMemoryTokenStore) Mint(ctx context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byDeposit[token.DepositID]; exists {
		return sentinel.ErrConflict
	}
	token.ID = id.TokenID(s.nextID)
	s.nextID++
	clone := *token
	s.tokens[token.ID] = &clone
	s.byDeposit[token.DepositID] = token.ID

	minted := token.ID
	depositID := token.DepositID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tokens, minted)
		delete(s.byDeposit, depositID)
		s.nextID--
	})
	return nil
}

func (s *InMemoryTokenStore) FindByID(_ context.Context, tokenID id.TokenID) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *InMemoryTokenStore) FindByDeposit(_ context.Context, depositID id.DepositID) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokenID, ok := s.byDeposit[depositID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.tokens[tokenID]
	return &clone, nil
}

func (s *InMemoryTokenStore) Update(ctx context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.tokens[token.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	clone := *token
	s.tokens[token.ID] = &clone
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tokens[token.ID] = prev
	})
	return nil
}
