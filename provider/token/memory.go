package token

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/airpayhq/airpay/engine"
)

// MemoryEngine is an in-process token engine for tests and
// single-node deployments.
type MemoryEngine struct {
	mu       sync.Mutex
	mints    map[engine.Address]uint8
	holdings map[engine.Address]*Holding
}

var _ Engine = (*MemoryEngine)(nil)

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		mints:    make(map[engine.Address]uint8),
		holdings: make(map[engine.Address]*Holding),
	}
}

// RegisterMint declares a mint with its decimal precision.
func (e *MemoryEngine) RegisterMint(mint engine.Address, decimals uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.mints[mint]; ok {
		return errors.Wrapf(ErrMintExists, "mint %s", mint)
	}
	e.mints[mint] = decimals
	return nil
}

func (e *MemoryEngine) MintDecimals(ctx context.Context, mint engine.Address) (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	decimals, ok := e.mints[mint]
	if !ok {
		return 0, errors.Wrapf(ErrMintNotFound, "mint %s", mint)
	}
	return decimals, nil
}

func (e *MemoryEngine) CreateHolding(ctx context.Context, authority, mint engine.Address) (engine.Address, error) {
	addr, err := HoldingAddress(authority, mint)
	if err != nil {
		return engine.Address{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.mints[mint]; !ok {
		return engine.Address{}, errors.Wrapf(ErrMintNotFound, "mint %s", mint)
	}
	if _, ok := e.holdings[addr]; ok {
		return engine.Address{}, errors.Wrapf(ErrHoldingExists, "holding %s", addr)
	}
	e.holdings[addr] = &Holding{
		Address:   addr,
		Authority: authority,
		Mint:      mint,
	}
	return addr, nil
}

func (e *MemoryEngine) Holding(ctx context.Context, authority, mint engine.Address) (*Holding, error) {
	addr, err := HoldingAddress(authority, mint)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.holdings[addr]
	if !ok {
		return nil, errors.Wrapf(ErrHoldingNotFound, "holding %s for authority %s", addr, authority)
	}
	out := *h
	return &out, nil
}

// Deposit credits a holding account. Test and bootstrap helper, not
// part of the Engine contract.
func (e *MemoryEngine) Deposit(holding engine.Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.holdings[holding]
	if !ok {
		return errors.Wrapf(ErrHoldingNotFound, "holding %s", holding)
	}
	h.Balance += amount
	return nil
}

func (e *MemoryEngine) Balance(holding engine.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.holdings[holding]
	if !ok {
		return 0, errors.Wrapf(ErrHoldingNotFound, "holding %s", holding)
	}
	return h.Balance, nil
}

func (e *MemoryEngine) TransferChecked(ctx context.Context, from, to engine.Address, amount uint64, decimals uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, ok := e.holdings[from]
	if !ok {
		return errors.Wrapf(ErrHoldingNotFound, "source holding %s", from)
	}
	dst, ok := e.holdings[to]
	if !ok {
		return errors.Wrapf(ErrHoldingNotFound, "destination holding %s", to)
	}
	if src.Mint != dst.Mint {
		return errors.Wrapf(ErrMintMismatch, "source mint %s, destination mint %s", src.Mint, dst.Mint)
	}
	if e.mints[src.Mint] != decimals {
		return errors.Wrapf(ErrDecimalsMismatch, "mint %s declares %d decimals, transfer uses %d", src.Mint, e.mints[src.Mint], decimals)
	}
	if src.Balance < amount {
		return errors.Wrapf(ErrInsufficientFunds, "holding %s has %d, need %d", from, src.Balance, amount)
	}
	src.Balance -= amount
	dst.Balance += amount
	return nil
}
