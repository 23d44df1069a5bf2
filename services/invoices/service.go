// Package invoices creates merchant invoice records bound to one
// payment token.
package invoices

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/engine/store"
	"github.com/airpayhq/airpay/provider/token"
)

func NewService(records store.Store, tokens token.Engine) *Service {
	return &Service{
		records: records,
		tokens:  tokens,
		logger:  zap.L().Named("invoices"),
	}
}

type Service struct {
	records store.Store
	tokens  token.Engine
	logger  *zap.Logger
}

// CreateInvoice creates a merchant's invoice record for one mint,
// snapshotting the config's current fee parameters, and allocates the
// invoice's own vault for that mint.
//
// The only proof that the mint is an accepted payment token is the
// pre-existing fee-holding account under the config's authority.
// Absence surfaces as the token layer's missing-account error.
func (s *Service) CreateInvoice(ctx context.Context, merchant, configAddr, mint engine.Address, seed uint64) (*engine.InvoiceAccount, engine.Address, error) {
	var cfg engine.Config
	err := s.records.View(ctx, func(tx store.Tx) error {
		return store.GetRecord(tx, configAddr, &cfg)
	})
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed load config record")
	}
	expected, err := cfg.RecordAddress()
	if err != nil {
		return nil, engine.Address{}, err
	}
	if expected != configAddr {
		return nil, engine.Address{}, errors.Wrapf(engine.ErrAddressMismatch, "config record does not match address %s", configAddr)
	}

	feeVault, err := s.tokens.Holding(ctx, configAddr, mint)
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "mint is not registered as a payment token")
	}

	addr, bump, err := engine.InvoiceAccountAddress(merchant, mint, seed)
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed derive invoice address")
	}

	vaultAddr, err := token.HoldingAddress(addr, mint)
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed derive invoice vault address")
	}

	acc := &engine.InvoiceAccount{
		Seed:        seed,
		Merchant:    merchant,
		Mint:        mint,
		Vault:       vaultAddr,
		FeeVault:    feeVault.Address,
		Fee:         cfg.Fee,
		BasisPoints: cfg.BasisPoints,
		Bump:        bump,
	}
	err = s.records.Update(ctx, func(tx store.Tx) error {
		if err := store.CreateRecord(tx, addr, acc); err != nil {
			return err
		}
		if _, err := s.tokens.CreateHolding(ctx, addr, mint); err != nil {
			return errors.Wrap(err, "failed create invoice vault")
		}
		return nil
	})
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed create invoice record")
	}

	s.logger.Info("Invoice created.",
		zap.String("address", addr.String()),
		zap.String("merchant", merchant.String()),
		zap.String("mint", mint.String()),
		zap.Uint64("seed", seed),
	)
	return acc, addr, nil
}

// GetInvoice loads and authenticates one invoice record.
func (s *Service) GetInvoice(ctx context.Context, addr engine.Address) (*engine.InvoiceAccount, error) {
	var acc engine.InvoiceAccount
	err := s.records.View(ctx, func(tx store.Tx) error {
		return store.GetRecord(tx, addr, &acc)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed load invoice record")
	}
	expected, err := acc.RecordAddress()
	if err != nil {
		return nil, err
	}
	if expected != addr {
		return nil, errors.Wrapf(engine.ErrAddressMismatch, "invoice record does not match address %s", addr)
	}
	return &acc, nil
}
