package files

import (
	"context"
	"sync"

	id "garant/pkg/domain"
)

// InMemoryStore keeps file records in process memory, per deposit, in
// insertion order.
type InMemoryStore struct {
	mu    sync.RWMutex
	files map[id.DepositID][]*File
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{files: make(map[id.DepositID][]*File)}
}

func (s *InMemoryStore) Append(_ context.Context, file *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *file
	s.files[file.DepositID] = append(s.files[file.DepositID], &clone)
	return nil
}

func (s *InMemoryStore) ListByDeposit(_ context.Context, depositID id.DepositID) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.files[depositID]
	out := make([]*File, 0, len(records))
	for _, f := range records {
		clone := *f
		out = append(out, &clone)
	}
	return out, nil
}
