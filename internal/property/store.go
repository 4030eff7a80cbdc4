package property

import (
	"context"

	id "garant/pkg/domain"
)

// Store is interface-driven so the service stays testable and the in-memory
// and postgres implementations are interchangeable. Stores return sentinel
// errors; the service translates them into domain errors.
type Store interface {
	// Create assigns the next sequential id and persists the property.
	Create(ctx context.Context, property *Property) error
	FindByID(ctx context.Context, propertyID id.PropertyID) (*Property, error)
	// Update persists status / current-deposit changes made by the escrow
	// engine inside its transactional boundary.
	Update(ctx context.Context, property *Property) error
	Delete(ctx context.Context, propertyID id.PropertyID) error
	// ListByLandlord returns property ids in insertion order. Deletions
	// swap-remove, so order may change after a delete.
	ListByLandlord(ctx context.Context, landlord id.Account) ([]id.PropertyID, error)
}

// DepositHistory answers whether any deposit ever existed for a property.
// Implemented by the escrow deposit store; a property with history is never
// deletable because deposits are retained permanently.
type DepositHistory interface {
	HasForProperty(ctx context.Context, propertyID id.PropertyID) (bool, error)
}
