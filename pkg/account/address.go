// Package account defines the identity used for payers, holders and owners.
package account

import (
	"errors"
	"strings"
)

// Address identifies an account on the settlement ledger and the registry.
type Address string

// ZeroAddress is the absent identity. Mints originate from it and burns go to it.
const ZeroAddress Address = ""

var ErrInvalidAddress = errors.New("invalid_address")

// Normalize trims and lowercases a raw address.
func Normalize(raw string) Address {
	return Address(strings.ToLower(strings.TrimSpace(raw)))
}

// Parse normalizes raw and rejects the zero address.
func Parse(raw string) (Address, error) {
	addr := Normalize(raw)
	if addr.IsZero() {
		return ZeroAddress, ErrInvalidAddress
	}
	return addr, nil
}

func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a Address) String() string {
	return string(a)
}
