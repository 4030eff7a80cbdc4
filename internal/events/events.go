// Package events defines the domain event log. Every committed state
// transition emits exactly one event; external observers (indexers, the
// dashboard) consume them instead of polling the stores.
package events

import (
	"context"
	"time"

	id "garant/pkg/domain"
)

// Type names a committed state transition.
type Type string

const (
	TypePropertyCreated       Type = "property_created"
	TypePropertyStatusChanged Type = "property_status_changed"
	TypeDepositCreated        Type = "deposit_created"
	TypeDepositPaid           Type = "deposit_paid"
	TypeDepositStatusChanged  Type = "deposit_status_changed"
	TypeDepositRefunded       Type = "deposit_refunded"
	TypeFileAdded             Type = "file_added"
	TypeReceiptMinted         Type = "receipt_minted"
	TypeReceiptBurned         Type = "receipt_burned"
	TypeFundsReceived         Type = "funds_received"
)

// Event carries the ids and the new value relevant to one transition. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Type       Type           `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	RequestID  string         `json:"request_id,omitempty"`
	PropertyID id.PropertyID  `json:"property_id,omitempty"`
	DepositID  id.DepositID   `json:"deposit_id,omitempty"`
	TokenID    id.TokenID     `json:"token_id,omitempty"`
	Account    string         `json:"account,omitempty"`
	Amount     uint64         `json:"amount,omitempty"`
	Status     string         `json:"status,omitempty"`
}

// Recorder accepts events from domain services. Services publish only after
// their transaction has committed, so a sink never sees a rolled-back
// transition. A Recorder must not block on external systems (use the kafka
// relay for that).
type Recorder interface {
	Emit(ctx context.Context, event Event) error
}

// Multi fans one event out to several recorders, stopping at the first error.
type Multi []Recorder

func (m Multi) Emit(ctx context.Context, event Event) error {
	for _, r := range m {
		if err := r.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
