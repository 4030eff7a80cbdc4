package receipt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DefaultImageURI is the fixed artwork every receipt points at.
const DefaultImageURI = "ipfs://bafybeid3pq5cmdgarant/deposit-receipt.png"

// Attribute is one trait of the metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the structured document mirrored from the deposit snapshot.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// BuildMetadata renders the metadata for a deposit snapshot. The result is a
// deterministic function of the snapshot: same snapshot, same document.
func BuildMetadata(snap *DepositSnapshot) Metadata {
	return Metadata{
		Name:        fmt.Sprintf("Quittance de caution #%s", snap.DepositID),
		Description: fmt.Sprintf("Reçu de dépôt de garantie %s pour le bien %s", snap.DepositID, snap.PropertyID),
		Image:       DefaultImageURI,
		Attributes: []Attribute{
			{TraitType: "Deposit ID", Value: snap.DepositID.String()},
			{TraitType: "Initial Amount", Value: strconv.FormatUint(snap.Amount, 10)},
			{TraitType: "Status", Value: snap.StatusLabel},
			{TraitType: "Property ID", Value: snap.PropertyID.String()},
			{TraitType: "Tenant", Value: snap.Tenant.String()},
			{TraitType: "Landlord", Value: snap.Landlord.String()},
			{TraitType: "Payment Date", Value: formatDate(snap.PaidAt)},
			{TraitType: "Refunded Amount", Value: strconv.FormatUint(snap.FinalAmount, 10)},
			{TraitType: "Refund Date", Value: formatDate(snap.RefundedAt)},
		},
	}
}

// Encode renders the document as JSON.
func (m Metadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DataURI renders the document as a self-contained data URI, the shape
// wallets and indexers expect from tokenURI.
func (m Metadata) DataURI() (string, error) {
	doc, err := m.Encode()
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(doc), nil
}

func dataURIFromDoc(doc []byte) string {
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(doc)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
