// Package payments settles item purchases: it validates expiry and
// stock, writes the immutable payment receipt, updates the item's
// counters and disburses the buyer's funds with the protocol fee
// split off.
package payments

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/engine/store"
	"github.com/airpayhq/airpay/provider/token"
)

func NewService(records store.Store, tokens token.Engine, nc *nats.EncodedConn) *Service {
	return &Service{
		records: records,
		tokens:  tokens,
		nc:      nc,
		logger:  zap.L().Named("payments"),
		now:     time.Now,
	}
}

type Service struct {
	records store.Store
	tokens  token.Engine
	nc      *nats.EncodedConn
	logger  *zap.Logger
	now     func() time.Time
}

// PayItem settles one purchase of an item. The whole transition runs
// in a single store transaction: every failure mode aborts with no
// partial effect persisted.
//
// Transition order, fail fast:
//  1. load and authenticate the invoice and item records,
//  2. expiry check,
//  3. stock check,
//  4. fee split from the invoice's snapshot (not live config),
//  5. receipt at the address derived from (buyer, item, pre-decrement
//     count),
//  6. counter update,
//  7. two checked transfers at the mint's declared decimals: net to
//     the merchant vault, fee to the fee vault.
func (s *Service) PayItem(ctx context.Context, buyer, invoiceAddr, itemAddr engine.Address, buyerMetadata engine.Digest) (*engine.PaymentMetadata, engine.Address, error) {
	var (
		receipt     engine.PaymentMetadata
		receiptAddr engine.Address
		inv         engine.InvoiceAccount
		item        engine.InvoiceItem
		feeAmount   uint64
		netAmount   uint64
	)

	err := s.records.Update(ctx, func(tx store.Tx) error {
		if err := store.GetRecord(tx, invoiceAddr, &inv); err != nil {
			return err
		}
		if err := authenticate(&inv, invoiceAddr); err != nil {
			return err
		}
		if err := store.GetRecord(tx, itemAddr, &item); err != nil {
			return err
		}
		if err := authenticateItem(&item, itemAddr, invoiceAddr); err != nil {
			return err
		}
		expectedVault, err := token.HoldingAddress(invoiceAddr, inv.Mint)
		if err != nil {
			return err
		}
		if expectedVault != inv.Vault {
			return errors.Wrap(engine.ErrAddressMismatch, "invoice vault does not match derivation")
		}

		if item.Expired(uint64(s.now().Unix())) {
			return errors.Wrapf(engine.ErrInvoiceExpired, "item %s expired at %d", itemAddr, item.ExpiryTs)
		}
		if item.Remaining == 0 {
			return errors.Wrapf(engine.ErrItemSoldOut, "item %s", itemAddr)
		}

		feeAmount, netAmount, err = engine.SplitFee(item.Price, inv.Fee, inv.BasisPoints)
		if err != nil {
			return err
		}

		seq, err := item.RecordSale()
		if err != nil {
			return err
		}

		addr, bump, err := engine.PaymentMetadataAddress(buyer, itemAddr, seq)
		if err != nil {
			return errors.Wrap(err, "failed derive receipt address")
		}
		receiptAddr = addr
		receipt = engine.PaymentMetadata{
			InvoiceItem:   itemAddr,
			PricePaid:     item.Price,
			ItemSeqNumber: seq,
			BuyerMetadata: buyerMetadata,
			Bump:          bump,
		}
		if err := store.CreateRecord(tx, receiptAddr, &receipt); err != nil {
			return err
		}
		if err := store.PutRecord(tx, itemAddr, &item); err != nil {
			return err
		}

		return s.disburse(ctx, buyer, &inv, item.Price, netAmount, feeAmount)
	})
	if err != nil {
		paymentsFailed.Inc()
		return nil, engine.Address{}, errors.Wrap(err, "failed pay item")
	}
	paymentsSettled.Inc()

	s.logger.Info("Payment settled.",
		zap.String("receipt", receiptAddr.String()),
		zap.String("item", itemAddr.String()),
		zap.String("buyer", buyer.String()),
		zap.Uint64("price", item.Price),
		zap.Uint64("net", netAmount),
		zap.Uint64("fee", feeAmount),
	)
	s.publishSettled(ctx, buyer, invoiceAddr, itemAddr, receiptAddr, &inv, &receipt, netAmount, feeAmount)

	return &receipt, receiptAddr, nil
}

// GetReceipt loads one payment receipt. The buyer is part of the
// receipt's address pre-image, so authentication re-derives the
// address from the presented buyer.
func (s *Service) GetReceipt(ctx context.Context, buyer, addr engine.Address) (*engine.PaymentMetadata, error) {
	var receipt engine.PaymentMetadata
	err := s.records.View(ctx, func(tx store.Tx) error {
		return store.GetRecord(tx, addr, &receipt)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed load receipt record")
	}
	expected, err := receipt.RecordAddress(buyer)
	if err != nil {
		return nil, err
	}
	if expected != addr {
		return nil, errors.Wrapf(engine.ErrAddressMismatch, "receipt record does not match address %s", addr)
	}
	return &receipt, nil
}

// disburse moves the buyer's funds: net to the merchant vault, fee to
// the fee vault, both at the mint's declared decimal precision. The
// balance precondition keeps the two transfers all-or-nothing.
func (s *Service) disburse(ctx context.Context, buyer engine.Address, inv *engine.InvoiceAccount, price, netAmount, feeAmount uint64) error {
	decimals, err := s.tokens.MintDecimals(ctx, inv.Mint)
	if err != nil {
		return errors.Wrap(err, "failed resolve mint decimals")
	}
	buyerHolding, err := s.tokens.Holding(ctx, buyer, inv.Mint)
	if err != nil {
		return errors.Wrap(err, "failed resolve buyer holding account")
	}
	if buyerHolding.Balance < price {
		return errors.Wrapf(token.ErrInsufficientFunds, "holding %s has %d, need %d", buyerHolding.Address, buyerHolding.Balance, price)
	}

	if err := s.tokens.TransferChecked(ctx, buyerHolding.Address, inv.Vault, netAmount, decimals); err != nil {
		return errors.Wrap(err, "failed transfer to merchant vault")
	}
	if err := s.tokens.TransferChecked(ctx, buyerHolding.Address, inv.FeeVault, feeAmount, decimals); err != nil {
		return errors.Wrap(err, "failed transfer to fee vault")
	}
	return nil
}

func authenticate(inv *engine.InvoiceAccount, presented engine.Address) error {
	expected, err := inv.RecordAddress()
	if err != nil {
		return err
	}
	if expected != presented {
		return errors.Wrapf(engine.ErrAddressMismatch, "invoice record does not match address %s", presented)
	}
	return nil
}

func authenticateItem(item *engine.InvoiceItem, presented, invoiceAddr engine.Address) error {
	expected, err := item.RecordAddress()
	if err != nil {
		return err
	}
	if expected != presented {
		return errors.Wrapf(engine.ErrAddressMismatch, "item record does not match address %s", presented)
	}
	if item.InvoiceAccount != invoiceAddr {
		return errors.Wrapf(engine.ErrAddressMismatch, "item does not belong to invoice %s", invoiceAddr)
	}
	return nil
}
