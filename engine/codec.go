package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Every persisted record starts with an 8-byte type discriminator
// reserved by the host environment, followed by the record fields in
// declared order (fixed-width little-endian integers, 32-byte
// digests) and a trailing bump byte.

func discriminator(typeName string) [8]byte {
	h := sha256.Sum256([]byte("account:" + typeName))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}

var (
	configDiscriminator          = discriminator("Config")
	invoiceAccountDiscriminator  = discriminator("InvoiceAccount")
	invoiceItemDiscriminator     = discriminator("InvoiceItem")
	paymentMetadataDiscriminator = discriminator("PaymentMetadata")
)

const (
	configSize          = 8 + 8 + 32 + 2 + 2 + 1
	invoiceAccountSize  = 8 + 8 + 32 + 32 + 32 + 32 + 2 + 2 + 4 + 1
	invoiceItemSize     = 8 + 8 + 32 + 8 + 32 + 8 + 8 + 2 + 2 + 1
	paymentMetadataSize = 8 + 32 + 8 + 2 + 32 + 1
)

func (c *Config) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, configSize)
	buf = append(buf, configDiscriminator[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, c.Seed)
	buf = append(buf, c.Admin[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, c.Fee)
	buf = binary.LittleEndian.AppendUint16(buf, c.BasisPoints)
	buf = append(buf, c.Bump)
	return buf, nil
}

func (c *Config) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader(data, configDiscriminator, configSize, "Config")
	if err != nil {
		return err
	}
	c.Seed = r.u64()
	c.Admin = r.addr()
	c.Fee = r.u16()
	c.BasisPoints = r.u16()
	c.Bump = r.u8()
	return nil
}

func (a *InvoiceAccount) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, invoiceAccountSize)
	buf = append(buf, invoiceAccountDiscriminator[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, a.Seed)
	buf = append(buf, a.Merchant[:]...)
	buf = append(buf, a.Mint[:]...)
	buf = append(buf, a.Vault[:]...)
	buf = append(buf, a.FeeVault[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, a.Fee)
	buf = binary.LittleEndian.AppendUint16(buf, a.BasisPoints)
	buf = binary.LittleEndian.AppendUint32(buf, a.SequenceNumber)
	buf = append(buf, a.Bump)
	return buf, nil
}

func (a *InvoiceAccount) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader(data, invoiceAccountDiscriminator, invoiceAccountSize, "InvoiceAccount")
	if err != nil {
		return err
	}
	a.Seed = r.u64()
	a.Merchant = r.addr()
	a.Mint = r.addr()
	a.Vault = r.addr()
	a.FeeVault = r.addr()
	a.Fee = r.u16()
	a.BasisPoints = r.u16()
	a.SequenceNumber = r.u32()
	a.Bump = r.u8()
	return nil
}

func (i *InvoiceItem) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, invoiceItemSize)
	buf = append(buf, invoiceItemDiscriminator[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, i.Seed)
	buf = append(buf, i.InvoiceAccount[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, i.Price)
	buf = append(buf, i.ProductID[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, i.CreationTs)
	buf = binary.LittleEndian.AppendUint64(buf, i.ExpiryTs)
	buf = binary.LittleEndian.AppendUint16(buf, i.Remaining)
	buf = binary.LittleEndian.AppendUint16(buf, i.Count)
	buf = append(buf, i.Bump)
	return buf, nil
}

func (i *InvoiceItem) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader(data, invoiceItemDiscriminator, invoiceItemSize, "InvoiceItem")
	if err != nil {
		return err
	}
	i.Seed = r.u64()
	i.InvoiceAccount = r.addr()
	i.Price = r.u64()
	i.ProductID = r.digest()
	i.CreationTs = r.u64()
	i.ExpiryTs = r.u64()
	i.Remaining = r.u16()
	i.Count = r.u16()
	i.Bump = r.u8()
	return nil
}

func (m *PaymentMetadata) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, paymentMetadataSize)
	buf = append(buf, paymentMetadataDiscriminator[:]...)
	buf = append(buf, m.InvoiceItem[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, m.PricePaid)
	buf = binary.LittleEndian.AppendUint16(buf, m.ItemSeqNumber)
	buf = append(buf, m.BuyerMetadata[:]...)
	buf = append(buf, m.Bump)
	return buf, nil
}

func (m *PaymentMetadata) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader(data, paymentMetadataDiscriminator, paymentMetadataSize, "PaymentMetadata")
	if err != nil {
		return err
	}
	m.InvoiceItem = r.addr()
	m.PricePaid = r.u64()
	m.ItemSeqNumber = r.u16()
	m.BuyerMetadata = r.digest()
	m.Bump = r.u8()
	return nil
}

type recordReader struct {
	data []byte
	off  int
}

func newRecordReader(data []byte, disc [8]byte, size int, typeName string) (*recordReader, error) {
	if len(data) != size {
		return nil, errors.Wrapf(ErrBadRecordData, "%s: want %d bytes, got %d", typeName, size, len(data))
	}
	if !bytes.Equal(data[:8], disc[:]) {
		return nil, errors.Wrapf(ErrBadRecordData, "%s: wrong discriminator", typeName)
	}
	return &recordReader{data: data, off: 8}, nil
}

func (r *recordReader) u8() uint8 {
	v := r.data[r.off]
	r.off++
	return v
}

func (r *recordReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *recordReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *recordReader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *recordReader) addr() Address {
	var a Address
	copy(a[:], r.data[r.off:])
	r.off += len(a)
	return a
}

func (r *recordReader) digest() Digest {
	var d Digest
	copy(d[:], r.data[r.off:])
	r.off += len(d)
	return d
}
