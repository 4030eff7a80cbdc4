package property

import (
	"context"
	"sync"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// InMemoryStore keeps properties in process memory. The next id counter is
// owned by the store; no global mutable state outside it. Writes register
// compensations via tx.OnRollback so a failed transaction restores the prior
// records.
type InMemoryStore struct {
	mu         sync.RWMutex
	nextID     uint64
	properties map[id.PropertyID]*Property
	byLandlord map[id.Account][]id.PropertyID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:     1,
		properties: make(map[id.PropertyID]*Property),
		byLandlord: make(map[id.Account][]id.PropertyID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, property *Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	property.ID = id.PropertyID(s.nextID)
	s.nextID++
	clone := *property
	s.properties[property.ID] = &clone
	s.byLandlord[property.Landlord] = append(s.byLandlord[property.Landlord], property.ID)

	created := property.ID
	landlord := property.Landlord
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.properties, created)
		list := s.byLandlord[landlord]
		s.byLandlord[landlord] = list[:len(list)-1]
		s.nextID--
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, propertyID id.PropertyID) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *InMemoryStore) Update(ctx context.Context, property *Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.properties[property.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	clone := *property
	s.properties[property.ID] = &clone
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.properties[property.ID] = prev
	})
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, propertyID id.PropertyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[propertyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.properties, propertyID)

	// Swap-remove from the landlord index; the list is an unordered set of ids.
	list := s.byLandlord[p.Landlord]
	for i, pid := range list {
		if pid == propertyID {
			list[i] = list[len(list)-1]
			s.byLandlord[p.Landlord] = list[:len(list)-1]
			break
		}
	}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.properties[propertyID] = p
		s.byLandlord[p.Landlord] = append(s.byLandlord[p.Landlord], propertyID)
	})
	return nil
}

func (s *InMemoryStore) ListByLandlord(_ context.Context, landlord id.Account) ([]id.PropertyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.PropertyID{}, s.byLandlord[landlord]...), nil
}
