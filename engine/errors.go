package engine

import "github.com/pkg/errors"

var (
	// Settlement errors.
	ErrInvoiceExpired = errors.New("invoice expired")
	ErrItemSoldOut    = errors.New("item sold out")
	ErrStockUnderflow = errors.New("stock underflow")
	ErrCountOverflow  = errors.New("sales counter overflow")

	// Validation errors.
	ErrZeroBasisPoints = errors.New("basis points must be greater than zero")
	ErrAmountOverflow  = errors.New("amount overflow")
	ErrUnauthorized    = errors.New("unauthorized caller")
	ErrAddressMismatch = errors.New("address mismatch")

	// Record errors.
	ErrRecordExists     = errors.New("record already exists")
	ErrRecordNotFound   = errors.New("record not found")
	ErrBadRecordData    = errors.New("bad record data")
	ErrNoDerivedAddress = errors.New("no derived address found")
)
