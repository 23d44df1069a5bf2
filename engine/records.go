package engine

import (
	"crypto/sha256"
	"math"
)

// Record is a persisted ledger record with a deterministic address.
type Record interface {
	// RecordAddress recomputes the record's expected address from its
	// own fields and stored bump.
	RecordAddress() (Address, error)
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Config is the protocol configuration record, one per (admin, seed)
// pair. Fee rate is Fee/BasisPoints.
type Config struct {
	Seed        uint64
	Admin       Address
	Fee         uint16
	BasisPoints uint16
	Bump        uint8
}

func (c *Config) RecordAddress() (Address, error) {
	return DeriveAddressWithBump(c.Bump, []byte(labelConfig), u64LE(c.Seed))
}

// InvoiceAccount is a merchant's invoice record, one per
// (merchant, mint, seed). Fee and BasisPoints are a snapshot of the
// config values at creation time; later config changes do not affect
// existing invoices.
type InvoiceAccount struct {
	Seed        uint64
	Merchant    Address
	Mint        Address
	Vault       Address
	FeeVault    Address
	Fee         uint16
	BasisPoints uint16

	// SequenceNumber feeds derived product IDs and is incremented on
	// every item created with a derived ID.
	SequenceNumber uint32

	Bump uint8
}

func (a *InvoiceAccount) RecordAddress() (Address, error) {
	return DeriveAddressWithBump(a.Bump, []byte(labelInvoiceAccount), a.Merchant[:], a.Mint[:], u64LE(a.Seed))
}

// DeriveProductID hashes the invoice's current sequence number with
// its address. addr must be the invoice's own record address.
func (a *InvoiceAccount) DeriveProductID(addr Address) Digest {
	h := sha256.New()
	h.Write(u32LE(a.SequenceNumber))
	h.Write(addr[:])
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// InvoiceItem is a sellable item under an invoice, one per
// (invoice, seed). Stock is fixed at creation: Remaining only
// decreases, Count only increases, Remaining+Count stays constant.
type InvoiceItem struct {
	Seed           uint64
	InvoiceAccount Address
	Price          uint64
	ProductID      Digest
	CreationTs     uint64
	ExpiryTs       uint64
	Remaining      uint16
	Count          uint16
	Bump           uint8
}

func (i *InvoiceItem) RecordAddress() (Address, error) {
	return DeriveAddressWithBump(i.Bump, []byte(labelInvoiceItem), i.InvoiceAccount[:], u64LE(i.Seed))
}

// Expired reports whether now (unix seconds) is past the sale window.
func (i *InvoiceItem) Expired(now uint64) bool {
	return now > i.ExpiryTs
}

// RecordSale moves one unit from stock to the sales counter and
// returns the sequence number of the sale (the pre-increment Count).
func (i *InvoiceItem) RecordSale() (uint16, error) {
	if i.Remaining == 0 {
		return 0, ErrStockUnderflow
	}
	if i.Count == math.MaxUint16 {
		return 0, ErrCountOverflow
	}
	seq := i.Count
	i.Remaining--
	i.Count++
	return seq, nil
}

// PaymentMetadata is the immutable receipt of one completed sale.
type PaymentMetadata struct {
	InvoiceItem   Address
	PricePaid     uint64
	ItemSeqNumber uint16
	// BuyerMetadata is a digest of off-ledger buyer details; the
	// details themselves are never stored.
	BuyerMetadata Digest
	Bump          uint8
}

func (m *PaymentMetadata) RecordAddress(buyer Address) (Address, error) {
	return DeriveAddressWithBump(m.Bump, []byte(labelPayInvoiceItem), buyer[:], m.InvoiceItem[:], u16LE(m.ItemSeqNumber))
}

func u32LE(v uint32) []byte {
	var buf [4]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	return buf[:]
}
