package engine

import (
	"crypto/sha256"
	"encoding/binary"

	"filippo.io/edwards25519"
)

// Record address label prefixes. Together with the binary seed inputs
// they fully determine a record's address, so any party can recompute
// the expected address and authenticate a presented record against it
// without a registry.
const (
	labelConfig         = "config"
	labelInvoiceAccount = "invoice_account"
	labelInvoiceItem    = "invoice_item"
	labelPayInvoiceItem = "pay_invoice_item"
)

// derivedAddressMarker is appended to every derivation pre-image so
// derived record addresses live in a domain separate from anything
// hashed elsewhere in the system.
const derivedAddressMarker = "AirpayDerivedRecord"

// DeriveAddress maps an ordered list of byte labels to a deterministic
// record address plus a collision-avoidance bump byte. The bump is
// searched downward from 255 until the candidate digest is not a valid
// ed25519 point, which guarantees the result can never equal a signer
// identity (identities are curve points).
func DeriveAddress(labels ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, label := range labels {
			h.Write(label)
		}
		h.Write([]byte{uint8(bump)})
		h.Write([]byte(derivedAddressMarker))

		var addr Address
		copy(addr[:], h.Sum(nil))
		if !onCurve(addr) {
			return addr, uint8(bump), nil
		}
	}
	return Address{}, 0, ErrNoDerivedAddress
}

// DeriveAddressWithBump recomputes the address for a known bump. Used
// to authenticate a presented record cheaply: the stored bump skips
// the search loop, and the off-curve property is re-checked.
func DeriveAddressWithBump(bump uint8, labels ...[]byte) (Address, error) {
	h := sha256.New()
	for _, label := range labels {
		h.Write(label)
	}
	h.Write([]byte{bump})
	h.Write([]byte(derivedAddressMarker))

	var addr Address
	copy(addr[:], h.Sum(nil))
	if onCurve(addr) {
		return Address{}, ErrAddressMismatch
	}
	return addr, nil
}

func onCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// ConfigAddress derives the config record address for a seed.
func ConfigAddress(seed uint64) (Address, uint8, error) {
	return DeriveAddress([]byte(labelConfig), u64LE(seed))
}

// InvoiceAccountAddress derives the invoice record address for a
// (merchant, mint, seed) triple.
func InvoiceAccountAddress(merchant, mint Address, seed uint64) (Address, uint8, error) {
	return DeriveAddress([]byte(labelInvoiceAccount), merchant[:], mint[:], u64LE(seed))
}

// InvoiceItemAddress derives the item record address under an invoice.
func InvoiceItemAddress(invoiceAccount Address, seed uint64) (Address, uint8, error) {
	return DeriveAddress([]byte(labelInvoiceItem), invoiceAccount[:], u64LE(seed))
}

// PaymentMetadataAddress derives the receipt address for one sale
// event. count is the item's sales counter before the decrement, so
// every successful sale of the same item by the same buyer lands at a
// fresh address.
func PaymentMetadataAddress(buyer, invoiceItem Address, count uint16) (Address, uint8, error) {
	return DeriveAddress([]byte(labelPayInvoiceItem), buyer[:], invoiceItem[:], u16LE(count))
}

func u64LE(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

func u16LE(v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return buf[:]
}
