// Package token is the value-transfer collaborator of the ledger
// core. The core never moves balances itself: it asks an Engine to
// transfer between holding accounts, and the engine enforces mint and
// decimal-precision correctness.
package token

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/airpayhq/airpay/engine"
)

var (
	ErrMintNotFound      = errors.New("mint not found")
	ErrMintExists        = errors.New("mint already registered")
	ErrHoldingNotFound   = errors.New("holding account not found")
	ErrHoldingExists     = errors.New("holding account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDecimalsMismatch  = errors.New("decimals mismatch")
	ErrMintMismatch      = errors.New("mint mismatch")
)

// Holding is a balance-holding account for one mint under one
// authority.
type Holding struct {
	Address   engine.Address
	Authority engine.Address
	Mint      engine.Address
	Balance   uint64
}

// Engine moves value between holding accounts.
type Engine interface {
	// MintDecimals returns the declared decimal precision of a mint.
	MintDecimals(ctx context.Context, mint engine.Address) (uint8, error)

	// CreateHolding allocates the holding account for
	// (authority, mint) at its derived address. Fails with
	// ErrHoldingExists if already allocated.
	CreateHolding(ctx context.Context, authority, mint engine.Address) (engine.Address, error)

	// Holding returns the holding account for (authority, mint).
	// Fails with ErrHoldingNotFound — the ledger core leans on this
	// as its token-whitelisting proof.
	Holding(ctx context.Context, authority, mint engine.Address) (*Holding, error)

	// TransferChecked moves amount between two holding accounts of
	// the same mint. decimals must equal the mint's declared
	// precision or the transfer fails.
	TransferChecked(ctx context.Context, from, to engine.Address, amount uint64, decimals uint8) error
}

// HoldingAddress derives the holding-account address for
// (authority, mint). Pure function: vaults are located by
// recomputation, never by stored lookup.
func HoldingAddress(authority, mint engine.Address) (engine.Address, error) {
	addr, _, err := engine.DeriveAddress([]byte("token_holding"), authority[:], mint[:])
	return addr, err
}

// Units converts a raw amount to display units for a given decimal
// precision. Used for event payloads and logs only; the ledger always
// operates on raw base units.
func Units(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}
