package files

import (
	"context"

	id "garant/pkg/domain"
)

// Store persists file records. Append-only by contract: there is no update
// or delete.
type Store interface {
	Append(ctx context.Context, file *File) error
	ListByDeposit(ctx context.Context, depositID id.DepositID) ([]*File, error)
}

// DepositDirectory resolves the landlord controlling a deposit. Implemented
// by the escrow engine; returns sentinel.ErrNotFound for unknown deposits.
type DepositDirectory interface {
	LandlordOf(ctx context.Context, depositID id.DepositID) (id.Account, error)
}
