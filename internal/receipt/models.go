// Package receipt issues the non-fungible receipt bound one-to-one to every
// paid deposit. The token is transferable and burnable independently of the
// underlying deposit record, which is retained forever.
package receipt

import (
	"context"
	"time"

	id "garant/pkg/domain"
)

// Token is the ownership record for one receipt.
//
// Invariants:
//   - Exactly one token per deposit that ever reached PAID, never before.
//   - The deposit binding never changes once minted.
//   - Burn clears ownership and is irreversible; the record itself stays so
//     reverse lookups remain stable.
type Token struct {
	ID        id.TokenID   `json:"id"`
	DepositID id.DepositID `json:"deposit_id"`
	Owner     id.Account   `json:"owner"`
	MintedAt  time.Time    `json:"minted_at"`
	Burned    bool         `json:"burned"`
}

// DepositSnapshot is the deposit state the metadata mirrors. The escrow
// engine builds it; this package never reads the deposit stores directly.
type DepositSnapshot struct {
	DepositID   id.DepositID
	PropertyID  id.PropertyID
	Landlord    id.Account
	Tenant      id.Account
	Amount      uint64
	FinalAmount uint64
	StatusLabel string
	Terminal    bool
	PaidAt      *time.Time
	RefundedAt  *time.Time
}

// SnapshotSource resolves the current deposit snapshot for metadata
// regeneration. Implemented by the escrow engine.
type SnapshotSource interface {
	DepositSnapshot(ctx context.Context, depositID id.DepositID) (*DepositSnapshot, error)
}

// TokenStore persists tokens. Stores return sentinel errors; the issuer
// translates them into domain errors.
type TokenStore interface {
	// Mint assigns the next sequential token id and persists the token.
	// Returns sentinel.ErrConflict when the deposit already has a token.
	Mint(ctx context.Context, token *Token) error
	FindByID(ctx context.Context, tokenID id.TokenID) (*Token, error)
	FindByDeposit(ctx context.Context, depositID id.DepositID) (*Token, error)
	Update(ctx context.Context, token *Token) error
}

// MetadataCache holds the rendered metadata document per token so reads do
// not touch the deposit stores. A miss is never an error for correctness:
// the document is regenerated from the snapshot.
type MetadataCache interface {
	Put(ctx context.Context, tokenID id.TokenID, doc []byte) error
	// Get returns sentinel.ErrNotFound on a miss.
	Get(ctx context.Context, tokenID id.TokenID) ([]byte, error)
	Delete(ctx context.Context, tokenID id.TokenID) error
}
