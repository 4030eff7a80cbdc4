// Package files is the append-only metadata index of documents attached to a
// deposit. The documents themselves live in off-chain content-addressed
// storage; the registry only records the content id and who uploaded what.
package files

import (
	"time"

	id "garant/pkg/domain"
)

// Type classifies an attached document.
type Type string

const (
	TypeLease          Type = "lease"
	TypePhotos         Type = "photos"
	TypeEntryInventory Type = "entry_inventory"
	TypeExitInventory  Type = "exit_inventory"
)

// Valid reports whether t is one of the known document types.
func (t Type) Valid() bool {
	switch t {
	case TypeLease, TypePhotos, TypeEntryInventory, TypeExitInventory:
		return true
	}
	return false
}

// File is one immutable registry entry. Records are never mutated or
// deleted; retrieval order is insertion order.
type File struct {
	DepositID  id.DepositID `json:"deposit_id"`
	Type       Type         `json:"type"`
	ContentID  string       `json:"content_id"`
	Uploader   id.Account   `json:"uploader"`
	UploadedAt time.Time    `json:"uploaded_at"`
	Name       string       `json:"name"`
}
