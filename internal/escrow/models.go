// Package escrow is the deposit ledger: it owns deposit records, enforces
// the payment/dispute/settlement state machine, and custodies funds between
// payment and settlement. It is the only component that moves money or
// property state.
package escrow

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
)

// Status is the deposit lifecycle state.
//
// Transitions:
//
//	PENDING  --pay-->     PAID
//	PAID     --refund-->  REFUNDED
//	PAID     --dispute--> DISPUTED
//	DISPUTED --resolve--> REFUNDED | PARTIALLY_REFUNDED | RETAINED
//
// REFUNDED, PARTIALLY_REFUNDED and RETAINED are terminal.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPaid              Status = "paid"
	StatusDisputed          Status = "disputed"
	StatusRetained          Status = "retained"
	StatusPartiallyRefunded Status = "partially_refunded"
	StatusRefunded          Status = "refunded"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusRetained, StatusPartiallyRefunded, StatusRefunded:
		return true
	}
	return false
}

// Label returns the human-readable status label used in receipt metadata.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "En attente"
	case StatusPaid:
		return "Payée"
	case StatusDisputed:
		return "En litige"
	case StatusRetained:
		return "Retenue"
	case StatusPartiallyRefunded:
		return "Partiellement remboursée"
	case StatusRefunded:
		return "Remboursée"
	}
	return string(s)
}

// Deposit is the aggregate for one security deposit. Once created it is
// retained permanently in the property's history, terminal or not.
//
// Invariants:
//   - Tenant and PaidAt are set exactly once, at payment.
//   - FinalAmount and RefundedAt are set exactly once, at settlement.
//   - Amount is only writable while PENDING.
type Deposit struct {
	ID          id.DepositID  `json:"id"`
	PropertyID  id.PropertyID `json:"property_id"`
	Tenant      id.Account    `json:"tenant"`
	CodeHash    string        `json:"-"`
	Amount      uint64        `json:"amount"`
	FinalAmount uint64        `json:"final_amount"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	RefundedAt  *time.Time    `json:"refunded_at,omitempty"`
}

// CanSetAmount checks the amount is still writable.
func (d *Deposit) CanSetAmount() error {
	if d.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "not pending")
	}
	return nil
}

// HashCode hashes a deposit code for at-rest storage; only the hash is ever
// persisted.
func HashCode(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "code is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash code")
	}
	return string(hashed), nil
}

// VerifyPayment validates a funding attempt against the deposit terms.
func (d *Deposit) VerifyPayment(code string, value uint64) error {
	if d.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "not pending")
	}
	if d.Amount == 0 {
		return dErrors.New(dErrors.CodeInvalidState, "amount not set")
	}
	if bcrypt.CompareHashAndPassword([]byte(d.CodeHash), []byte(code)) != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "bad code")
	}
	if value != d.Amount {
		return dErrors.New(dErrors.CodeInvalidInput, "bad amount")
	}
	return nil
}

// ApplyPayment binds the tenant and marks the deposit funded.
// Call VerifyPayment first.
func (d *Deposit) ApplyPayment(tenant id.Account, now time.Time) {
	d.Tenant = tenant
	d.Status = StatusPaid
	d.PaidAt = &now
}

// CanRefund checks a full refund is legal.
func (d *Deposit) CanRefund() error {
	if d.Status != StatusPaid {
		return dErrors.New(dErrors.CodeInvalidState, "not paid")
	}
	return nil
}

// ApplyRefund settles the deposit with a full refund to the tenant.
func (d *Deposit) ApplyRefund(now time.Time) {
	d.FinalAmount = d.Amount
	d.Status = StatusRefunded
	d.RefundedAt = &now
}

// CanDispute checks a dispute may be opened.
func (d *Deposit) CanDispute() error {
	if d.Status != StatusPaid {
		return dErrors.New(dErrors.CodeInvalidState, "not paid")
	}
	return nil
}

// ApplyDispute freezes the deposit pending resolution.
func (d *Deposit) ApplyDispute() {
	d.Status = StatusDisputed
}

// CanResolve checks a settlement decision is legal.
func (d *Deposit) CanResolve(refundAmount uint64) error {
	if d.Status != StatusDisputed {
		return dErrors.New(dErrors.CodeInvalidState, "not disputed")
	}
	if refundAmount > d.Amount {
		return dErrors.New(dErrors.CodeInvalidInput, "exceeds deposit")
	}
	return nil
}

// ApplyResolution settles the dispute. The final status is a pure function
// of refundAmount: full refund, full retention, or the exact split between.
func (d *Deposit) ApplyResolution(refundAmount uint64, now time.Time) {
	d.FinalAmount = refundAmount
	d.RefundedAt = &now
	switch {
	case refundAmount == d.Amount:
		d.Status = StatusRefunded
	case refundAmount == 0:
		d.Status = StatusRetained
	default:
		d.Status = StatusPartiallyRefunded
	}
}
