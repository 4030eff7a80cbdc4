// Package domain holds the shared identifier primitives used across the
// service. Keeping them in one place prevents accidental mixing of id spaces
// (a DepositID is never a PropertyID, even though both are sequential).
package domain

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Account identifies an authenticated principal (landlord, tenant, or any
// other caller). It is uuid-backed; the zero value means "no account".
type Account uuid.UUID

// NewAccount returns a fresh random account identifier.
func NewAccount() Account {
	return Account(uuid.New())
}

// ParseAccount validates and returns an Account from its string form.
func ParseAccount(s string) (Account, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Account{}, fmt.Errorf("parse account: %w", err)
	}
	return Account(u), nil
}

func (a Account) String() string {
	return uuid.UUID(a).String()
}

// IsNil reports whether the account is the zero value.
func (a Account) IsNil() bool {
	return uuid.UUID(a) == uuid.Nil
}

// MarshalText renders the account in canonical uuid form for JSON and text
// encoders.
func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the canonical uuid form.
func (a *Account) UnmarshalText(text []byte) error {
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PropertyID is a sequential identifier allocated by the property store.
// Zero means "no property".
type PropertyID uint64

func (p PropertyID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// IsNil reports whether the id is unset.
func (p PropertyID) IsNil() bool {
	return p == 0
}

// DepositID is a sequential identifier allocated by the deposit store.
// Zero means "no deposit"; properties use it to signal no active deposit.
type DepositID uint64

func (d DepositID) String() string {
	return strconv.FormatUint(uint64(d), 10)
}

// IsNil reports whether the id is unset.
func (d DepositID) IsNil() bool {
	return d == 0
}

// TokenID is a sequential identifier allocated by the receipt token store.
// Zero means "no token".
type TokenID uint64

func (t TokenID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// IsNil reports whether the id is unset.
func (t TokenID) IsNil() bool {
	return t == 0
}

// ParsePropertyID parses the decimal string form used in URLs.
func ParsePropertyID(s string) (PropertyID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("parse property id %q", s)
	}
	return PropertyID(n), nil
}

// ParseDepositID parses the decimal string form used in URLs.
func ParseDepositID(s string) (DepositID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("parse deposit id %q", s)
	}
	return DepositID(n), nil
}

// ParseTokenID parses the decimal string form used in URLs.
func ParseTokenID(s string) (TokenID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("parse token id %q", s)
	}
	return TokenID(n), nil
}
