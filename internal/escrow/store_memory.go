package escrow

import (
	"context"
	"sync"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// InMemoryDepositStore keeps deposits in process memory. Used in tests and
// for single-node deployments without a database. Writes register
// compensations via tx.OnRollback so a failed transaction restores the prior
// records.
type InMemoryDepositStore struct {
	mu         sync.RWMutex
	deposits   map[id.DepositID]*Deposit
	byProperty map[id.PropertyID][]id.DepositID
	nextID     uint64
}

func NewInMemoryDepositStore() *InMemoryDepositStore {
	return &InMemoryDepositStore{
		deposits:   make(map[id.DepositID]*Deposit),
		byProperty: make(map[id.PropertyID][]id.DepositID),
		nextID:     1,
	}
}

func (s *InMemoryDepositStore) Create(ctx context.Context, deposit *Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit.ID = id.DepositID(s.nextID)
	s.nextID++

	clone := *deposit
	s.deposits[deposit.ID] = &clone
	s.byProperty[deposit.PropertyID] = append(s.byProperty[deposit.PropertyID], deposit.ID)

	created := deposit.ID
	propertyID := deposit.PropertyID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.deposits, created)
		list := s.byProperty[propertyID]
		s.byProperty[propertyID] = list[:len(list)-1]
		s.nextID--
	})
	return nil
}

func (s *InMemoryDepositStore) FindByID(_ context.Context, depositID id.DepositID) (*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deposit, ok := s.deposits[depositID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *deposit
	return &clone, nil
}

func (s *InMemoryDepositStore) Update(ctx context.Context, deposit *Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.deposits[deposit.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	clone := *deposit
	s.deposits[deposit.ID] = &clone
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.deposits[deposit.ID] = prev
	})
	return nil
}

func (s *InMemoryDepositStore) ListByTenant(_ context.Context, tenant id.Account) ([]*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Deposit ids are sequential, so a scan in id order yields oldest first.
	out := make([]*Deposit, 0)
	for next := uint64(1); next < s.nextID; next++ {
		deposit, ok := s.deposits[id.DepositID(next)]
		if !ok || deposit.Tenant != tenant {
			continue
		}
		clone := *deposit
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryDepositStore) ListByProperty(_ context.Context, propertyID id.PropertyID) ([]*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byProperty[propertyID]
	out := make([]*Deposit, 0, len(ids))
	for _, depositID := range ids {
		clone := *s.deposits[depositID]
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryDepositStore) HasForProperty(_ context.Context, propertyID id.PropertyID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byProperty[propertyID]) > 0, nil
}
