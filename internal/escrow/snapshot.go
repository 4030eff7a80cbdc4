package escrow

import (
	"context"
	"fmt"

	"garant/internal/property"
	"garant/internal/receipt"
	id "garant/pkg/domain"
)

// SnapshotAdapter implements receipt.SnapshotSource over the deposit and
// property stores. It exists so the issuer can be constructed before the
// escrow service that feeds it.
type SnapshotAdapter struct {
	deposits   DepositStore
	properties property.Store
}

func NewSnapshotAdapter(deposits DepositStore, properties property.Store) *SnapshotAdapter {
	return &SnapshotAdapter{deposits: deposits, properties: properties}
}

func (a *SnapshotAdapter) DepositSnapshot(ctx context.Context, depositID id.DepositID) (*receipt.DepositSnapshot, error) {
	deposit, err := a.deposits.FindByID(ctx, depositID)
	if err != nil {
		return nil, fmt.Errorf("load deposit %s: %w", depositID, err)
	}
	prop, err := a.properties.FindByID(ctx, deposit.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("load property %s: %w", deposit.PropertyID, err)
	}
	return buildSnapshot(deposit, prop), nil
}

// buildSnapshot projects a deposit and its property into the view the
// receipt metadata mirrors.
func buildSnapshot(d *Deposit, p *property.Property) *receipt.DepositSnapshot {
	return &receipt.DepositSnapshot{
		DepositID:   d.ID,
		PropertyID:  d.PropertyID,
		Landlord:    p.Landlord,
		Tenant:      d.Tenant,
		Amount:      d.Amount,
		FinalAmount: d.FinalAmount,
		StatusLabel: d.Status.Label(),
		Terminal:    d.Status.Terminal(),
		PaidAt:      d.PaidAt,
		RefundedAt:  d.RefundedAt,
	}
}
