package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnCommitDeferredUntilSuccess(t *testing.T) {
	runner := NewMutexRunner()
	var fired []string

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		OnCommit(ctx, func(context.Context) { fired = append(fired, "first") })
		OnCommit(ctx, func(context.Context) { fired = append(fired, "second") })
		// Nothing may be visible before the transaction returns.
		assert.Empty(t, fired)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, fired)
}

func TestOnCommitSkippedOnFailure(t *testing.T) {
	runner := NewMutexRunner()
	var fired bool

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		OnCommit(ctx, func(context.Context) { fired = true })
		return errors.New("validation failed")
	})
	require.Error(t, err)
	assert.False(t, fired)
}

func TestOnRollbackUnwindsInReverseOrder(t *testing.T) {
	runner := NewMutexRunner()
	var unwound []string

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { unwound = append(unwound, "first") })
		OnRollback(ctx, func() { unwound = append(unwound, "second") })
		return errors.New("late failure")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, unwound)
}

func TestOnRollbackSkippedOnSuccess(t *testing.T) {
	runner := NewMutexRunner()
	var unwound bool

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { unwound = true })
		return nil
	})
	require.NoError(t, err)
	assert.False(t, unwound)
}

func TestOnCommitOutsideTransactionRunsImmediately(t *testing.T) {
	var fired bool
	OnCommit(context.Background(), func(context.Context) { fired = true })
	assert.True(t, fired)
}

func TestOnRollbackOutsideTransactionIsNoop(t *testing.T) {
	// Nothing to unwind without a transaction; must not panic.
	OnRollback(context.Background(), func() { t.Fatal("must not run") })
}
