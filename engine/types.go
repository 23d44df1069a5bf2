package engine

import (
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Address is a 32-byte record or signer address. Signer identities
// (admin, merchant, buyer) and derived record addresses share the same
// address space; derived addresses are guaranteed to never be valid
// signer identities (see DeriveAddress).
type Address [32]byte

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes a base58 encoded address.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, errors.Wrap(err, "failed decode address")
	}
	if len(raw) != len(Address{}) {
		return Address{}, errors.Wrapf(ErrBadRecordData, "address must be %d bytes, got %d", len(Address{}), len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// Digest is a 32-byte hash value (product IDs, buyer metadata).
type Digest [32]byte
