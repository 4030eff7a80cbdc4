package custody

import (
	"context"
	"sync"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// InMemoryLedger keeps balances in process memory. Every movement enlists a
// compensation via tx.OnRollback, so a failed transaction restores the exact
// prior balances; the mutex only protects reads from outside the escrow
// engine's transactional boundary.
type InMemoryLedger struct {
	mu       sync.RWMutex
	balances map[id.Account]uint64
	held     map[id.DepositID]uint64
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		balances: make(map[id.Account]uint64),
		held:     make(map[id.DepositID]uint64),
	}
}

func (l *InMemoryLedger) Credit(ctx context.Context, account id.Account, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
	tx.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.balances[account] -= amount
	})
	return nil
}

func (l *InMemoryLedger) Debit(ctx context.Context, account id.Account, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account] < amount {
		return sentinel.ErrInsufficientFunds
	}
	l.balances[account] -= amount
	tx.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.balances[account] += amount
	})
	return nil
}

func (l *InMemoryLedger) Balance(_ context.Context, account id.Account) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

func (l *InMemoryLedger) Hold(ctx context.Context, depositID id.DepositID, from id.Account, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return sentinel.ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.held[depositID] += amount
	tx.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.balances[from] += amount
		l.held[depositID] -= amount
	})
	return nil
}

func (l *InMemoryLedger) Release(ctx context.Context, depositID id.DepositID, to id.Account, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == 0 {
		return nil
	}
	if l.held[depositID] < amount {
		return sentinel.ErrInsufficientFunds
	}
	l.held[depositID] -= amount
	l.balances[to] += amount
	tx.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[depositID] += amount
		l.balances[to] -= amount
	})
	return nil
}

func (l *InMemoryLedger) Held(_ context.Context, depositID id.DepositID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.held[depositID], nil
}

func (l *InMemoryLedger) TotalHeld(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total uint64
	for _, amount := range l.held {
		total += amount
	}
	return total, nil
}
