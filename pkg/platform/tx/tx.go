// Package tx provides the transactional boundary every mutating ledger
// operation runs inside. The ledger is a single serialized state authority:
// an operation observes a consistent snapshot, validates, and either commits
// all of its effects or none of them.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type hooksKeyType struct{}

var hooksKey = hooksKeyType{}

// hookSet collects the side effects registered during one transaction run.
type hookSet struct {
	commit   []func(ctx context.Context)
	rollback []func()
}

func withHookSet(ctx context.Context) (context.Context, *hookSet) {
	hs := &hookSet{}
	return context.WithValue(ctx, hooksKey, hs), hs
}

func (hs *hookSet) runCommit(ctx context.Context) {
	for _, fn := range hs.commit {
		fn(ctx)
	}
}

func (hs *hookSet) runRollback() {
	// Compensations unwind in reverse registration order.
	for i := len(hs.rollback) - 1; i >= 0; i-- {
		hs.rollback[i]()
	}
}

// OnCommit defers fn until the surrounding transaction has committed, so a
// rolled-back run produces no observable side effect. Outside a transaction
// fn runs immediately. The commit hooks run in registration order, still
// under the runner's serialization.
func OnCommit(ctx context.Context, fn func(ctx context.Context)) {
	if hs, ok := ctx.Value(hooksKey).(*hookSet); ok {
		hs.commit = append(hs.commit, fn)
		return
	}
	fn(ctx)
}

// OnRollback registers a compensation to run if the surrounding transaction
// aborts. In-process state (memory stores, the memory fund ledger) cannot
// ride a SQL rollback, so it enlists here instead. No-op outside a
// transaction.
func OnRollback(ctx context.Context, fn func()) {
	if hs, ok := ctx.Value(hooksKey).(*hookSet); ok {
		hs.rollback = append(hs.rollback, fn)
	}
}

// Runner executes fn atomically. Implementations guarantee that two runs
// never interleave in a way that could observe a half-applied transition, and
// that a failed run leaves no effect behind: writes are either rolled back by
// the database or unwound through the OnRollback compensations.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MutexRunner serializes all transactions behind a single mutex. It backs the
// in-memory stores: when fn fails, every compensation the stores registered
// via OnRollback runs before the mutex is released, restoring the pre-run
// state.
type MutexRunner struct {
	mu sync.Mutex
}

func NewMutexRunner() *MutexRunner {
	return &MutexRunner{}
}

func (r *MutexRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hctx, hs := withHookSet(ctx)
	if err := fn(hctx); err != nil {
		hs.runRollback()
		return err
	}
	hs.runCommit(ctx)
	return nil
}

// SQLRunner wraps fn in a database transaction. Stores pick the transaction
// up from the context via From, so the same store code serves both paths.
// OnRollback compensations still run on failure, covering any in-process
// collaborator enlisted alongside the SQL stores.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	hctx, hs := withHookSet(WithTx(ctx, sqlTx))
	if err := fn(hctx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			hs.runRollback()
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		hs.runRollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		hs.runRollback()
		return fmt.Errorf("commit tx: %w", err)
	}
	hs.runCommit(ctx)
	return nil
}
