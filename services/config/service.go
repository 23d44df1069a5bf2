// Package config creates the protocol configuration record and
// authorizes payment tokens by allocating fee-holding accounts under
// the config's authority.
package config

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
		logger:  zap.L().Named("config"),
	}
}

type Service struct {
	records store.Store
	tokens  token.Engine
	logger  *zap.Logger
}

// CreateConfig persists the protocol configuration record with the
// caller as admin. The fee rate is fee/basisPoints.
func (s *Service) CreateConfig(ctx context.Context, admin engine.Address, seed uint64, fee, basisPoints uint16) (*engine.Config, engine.Address, error) {
	if basisPoints == 0 {
		return nil, engine.Address{}, engine.ErrZeroBasisPoints
	}

	addr, bump, err := engine.ConfigAddress(seed)
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed derive config address")
	}

	cfg := &engine.Config{
		Seed:        seed,
		Admin:       admin,
		Fee:         fee,
		BasisPoints: basisPoints,
		Bump:        bump,
	}
	err = s.records.Update(ctx, func(tx store.Tx) error {
		return store.CreateRecord(tx, addr, cfg)
	})
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed create config record")
	}

	s.logger.Info("Config created.",
		zap.String("address", addr.String()),
		zap.Uint64("seed", seed),
		zap.Uint16("fee", fee),
		zap.Uint16("basis_points", basisPoints),
	)
	return cfg, addr, nil
}

// RegisterPaymentToken whitelists a mint by creating the fee-holding
// account for it under the config's authority. The holding account
// itself is the whitelist: no other state is written.
func (s *Service) RegisterPaymentToken(ctx context.Context, caller, configAddr, mint engine.Address) (engine.Address, error) {
	var cfg engine.Config
	err := s.records.View(ctx, func(tx store.Tx) error {
		return store.GetRecord(tx, configAddr, &cfg)
	})
	if err != nil {
		return engine.Address{}, errors.Wrap(err, "failed load config record")
	}
	if err := authenticateConfig(&cfg, configAddr); err != nil {
		return engine.Address{}, err
	}
	if cfg.Admin != caller {
		return engine.Address{}, errors.Wrap(engine.ErrUnauthorized, "caller is not the config admin")
	}

	feeVault, err := s.tokens.CreateHolding(ctx, configAddr, mint)
	if err != nil {
		return engine.Address{}, errors.Wrap(err, "failed create fee-holding account")
	}

	s.logger.Info("Payment token registered.",
		zap.String("config", configAddr.String()),
		zap.String("mint", mint.String()),
		zap.String("fee_vault", feeVault.String()),
	)
	return feeVault, nil
}

// GetConfig loads and authenticates one config record.
func (s *Service) GetConfig(ctx context.Context, addr engine.Address) (*engine.Config, error) {
	var cfg engine.Config
	err := s.records.View(ctx, func(tx store.Tx) error {
		return store.GetRecord(tx, addr, &cfg)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed load config record")
	}
	if err := authenticateConfig(&cfg, addr); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func authenticateConfig(cfg *engine.Config, presented engine.Address) error {
	expected, err := cfg.RecordAddress()
	if err != nil {
		return err
	}
	if expected != presented {
		return errors.Wrapf(engine.ErrAddressMismatch, "config record does not match address %s", presented)
	}
	return nil
}
