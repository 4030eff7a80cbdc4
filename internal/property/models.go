// Package property owns property records and their rental-availability state.
// Status and the active-deposit pointer are mutated only by the escrow
// engine; creation and deletion happen here.
package property

import (
	"time"

	id "garant/pkg/domain"
)

// Status is the rental-availability state of a property.
type Status string

const (
	StatusNotRented Status = "not_rented"
	StatusRented    Status = "rented"
	StatusDisputed  Status = "disputed"
)

// Property is the aggregate for one registered rental property.
//
// Invariants:
//   - CurrentDepositID != 0 implies that deposit's PropertyID == ID and its
//     status is not terminal.
//   - Only the escrow engine writes Status and CurrentDepositID after creation.
type Property struct {
	ID               id.PropertyID `json:"id"`
	Landlord         id.Account    `json:"landlord"`
	Name             string        `json:"name"`
	Location         string        `json:"location"`
	Status           Status        `json:"status"`
	CurrentDepositID id.DepositID  `json:"current_deposit_id"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Available reports whether a new deposit may be opened for the property.
func (p *Property) Available() bool {
	return p.Status == StatusNotRented && p.CurrentDepositID.IsNil()
}
