// Package custody models the fund movements behind the escrow engine as a
// debit/credit account ledger. Between payment and settlement the funds sit
// in a per-deposit held bucket owned by no single party. Only the escrow
// service moves funds; no other component touches this ledger.
package custody

import (
	"context"

	id "garant/pkg/domain"
)

// Ledger is the custody account abstraction. All amounts are unsigned
// integers in the smallest transferable unit; arithmetic is exact, no
// rounding ever occurs.
type Ledger interface {
	// Credit adds funds to an account (incoming settlement, test faucet).
	Credit(ctx context.Context, account id.Account, amount uint64) error
	// Debit removes funds from an account. Returns
	// sentinel.ErrInsufficientFunds when the balance cannot cover it.
	Debit(ctx context.Context, account id.Account, amount uint64) error
	// Balance reports an account's free balance.
	Balance(ctx context.Context, account id.Account) (uint64, error)

	// Hold debits the payer and locks the amount against a deposit.
	Hold(ctx context.Context, depositID id.DepositID, from id.Account, amount uint64) error
	// Release moves part of a deposit's held funds to the payee. Returns
	// sentinel.ErrInsufficientFunds if the hold cannot cover the amount.
	Release(ctx context.Context, depositID id.DepositID, to id.Account, amount uint64) error
	// Held reports the amount currently locked against a deposit.
	Held(ctx context.Context, depositID id.DepositID) (uint64, error)
	// TotalHeld reports the sum of all locked funds.
	TotalHeld(ctx context.Context) (uint64, error)
}
