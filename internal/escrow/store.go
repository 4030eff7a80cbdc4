package escrow

import (
	"context"

	id "garant/pkg/domain"
)

// DepositStore persists deposit records. Implementations return
// sentinel.ErrNotFound for unknown ids and never delete: settled deposits
// stay on file as the property's rental history.
type DepositStore interface {
	// Create assigns the deposit its id.
	Create(ctx context.Context, deposit *Deposit) error
	FindByID(ctx context.Context, depositID id.DepositID) (*Deposit, error)
	Update(ctx context.Context, deposit *Deposit) error
	// ListByTenant returns deposits paid by the tenant, oldest first.
	ListByTenant(ctx context.Context, tenant id.Account) ([]*Deposit, error)
	// ListByProperty returns every deposit ever opened against the
	// property, oldest first.
	ListByProperty(ctx context.Context, propertyID id.PropertyID) ([]*Deposit, error)
	// HasForProperty reports whether any deposit exists for the property,
	// in any state.
	HasForProperty(ctx context.Context, propertyID id.PropertyID) (bool, error)
}
