// Package items creates sellable item records under a merchant's
// invoice.
package items

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/engine/store"
)

func NewService(records store.Store) *Service {
	return &Service{
		records: records,
		logger:  zap.L().Named("items"),
		now:     time.Now,
	}
}

type Service struct {
	records store.Store
	logger  *zap.Logger
	now     func() time.Time
}

// CreateItem creates a sellable item under an invoice. Only the
// invoice's recorded merchant may call it.
//
// Two product-identifier policies are supported: the caller supplies
// an opaque digest, or productID is nil and the identifier is derived
// from the invoice's sequence number and address. The derived policy
// increments the sequence number so consecutive items get distinct
// identifiers.
//
// Expiry is deliberately not validated here: an item may be created
// with its sale window already closed, and every payment attempt
// against it will fail.
func (s *Service) CreateItem(ctx context.Context, merchant, invoiceAddr engine.Address, seed uint64, price uint64, productID *engine.Digest, expiryTs uint64, stock uint16) (*engine.InvoiceItem, engine.Address, error) {
	addr, bump, err := engine.InvoiceItemAddress(invoiceAddr, seed)
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed derive item address")
	}

	item := &engine.InvoiceItem{
		Seed:           seed,
		InvoiceAccount: invoiceAddr,
		Price:          price,
		CreationTs:     uint64(s.now().Unix()),
		ExpiryTs:       expiryTs,
		Remaining:      stock,
		Count:          0,
		Bump:           bump,
	}

	err = s.records.Update(ctx, func(tx store.Tx) error {
		var inv engine.InvoiceAccount
		if err := store.GetRecord(tx, invoiceAddr, &inv); err != nil {
			return err
		}
		expected, err := inv.RecordAddress()
		if err != nil {
			return err
		}
		if expected != invoiceAddr {
			return errors.Wrapf(engine.ErrAddressMismatch, "invoice record does not match address %s", invoiceAddr)
		}
		if inv.Merchant != merchant {
			return errors.Wrap(engine.ErrUnauthorized, "caller is not the invoice merchant")
		}

		if productID != nil {
			item.ProductID = *productID
		} else {
			item.ProductID = inv.DeriveProductID(invoiceAddr)
			inv.SequenceNumber++
			if err := store.PutRecord(tx, invoiceAddr, &inv); err != nil {
				return err
			}
		}
		return store.CreateRecord(tx, addr, item)
	})
	if err != nil {
		return nil, engine.Address{}, errors.Wrap(err, "failed create item record")
	}

	s.logger.Info("Item created.",
		zap.String("address", addr.String()),
		zap.String("invoice", invoiceAddr.String()),
		zap.Uint64("price", price),
		zap.Uint16("stock", stock),
		zap.Uint64("expiry_ts", expiryTs),
	)
	return item, addr, nil
}

// GetItem loads and authenticates one item record.
func (s *Service) GetItem(ctx context.Context, addr engine.Address) (*engine.InvoiceItem, error) {
	var item engine.InvoiceItem
	err := s.records.View(ctx, func(tx store.Tx) error {
		return store.GetRecord(tx, addr, &item)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed load item record")
	}
	expected, err := item.RecordAddress()
	if err != nil {
		return nil, err
	}
	if expected != addr {
		return nil, errors.Wrapf(engine.ErrAddressMismatch, "item record does not match address %s", addr)
	}
	return &item, nil
}
