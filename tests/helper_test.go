package tests

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/engine/store"
	"github.com/airpayhq/airpay/provider/token"
	"github.com/airpayhq/airpay/services/config"
	"github.com/airpayhq/airpay/services/invoices"
	"github.com/airpayhq/airpay/services/items"
	"github.com/airpayhq/airpay/services/payments"
)

const mintDecimals = uint8(6)

// HelperData drives the four ledger services against in-memory
// backends and keeps named addresses between steps.
type HelperData struct {
	ctx context.Context

	records *store.Memory
	tokens  *token.MemoryEngine

	configSvc   *config.Service
	invoicesSvc *invoices.Service
	itemsSvc    *items.Service
	paymentsSvc *payments.Service

	admin    engine.Address
	merchant engine.Address
	buyer    engine.Address
	mint     engine.Address

	addrs map[string]engine.Address
}

func NewHelperData(t *testing.T) *HelperData {
	t.Helper()

	h := &HelperData{
		ctx:     context.Background(),
		records: store.NewMemory(),
		tokens:  token.NewMemoryEngine(),
		addrs:   make(map[string]engine.Address),
	}
	h.configSvc = config.NewService(h.records, h.tokens)
	h.invoicesSvc = invoices.NewService(h.records, h.tokens)
	h.itemsSvc = items.NewService(h.records)
	h.paymentsSvc = payments.NewService(h.records, h.tokens, nil)

	h.admin = identity("admin")
	h.merchant = identity("merchant")
	h.buyer = identity("buyer")
	h.mint = identity("mint")
	require.NoError(t, h.tokens.RegisterMint(h.mint, mintDecimals))

	return h
}

func identity(name string) engine.Address {
	return engine.Address(sha256.Sum256([]byte("tests:identity:" + name)))
}

func metadata(name string) engine.Digest {
	return engine.Digest(sha256.Sum256([]byte("tests:metadata:" + name)))
}

func farExpiry() uint64 {
	return uint64(time.Now().Add(24 * time.Hour).Unix())
}

func (h *HelperData) CreateConfig(key string, seed uint64, fee, basisPoints uint16) func(t *testing.T) {
	return func(t *testing.T) {
		_, addr, err := h.configSvc.CreateConfig(h.ctx, h.admin, seed, fee, basisPoints)
		require.NoError(t, err)
		h.addrs[key] = addr
	}
}

func (h *HelperData) RegisterPaymentToken(configKey string) func(t *testing.T) {
	return func(t *testing.T) {
		_, err := h.configSvc.RegisterPaymentToken(h.ctx, h.admin, h.addrs[configKey], h.mint)
		require.NoError(t, err)
	}
}

func (h *HelperData) CreateInvoice(key, configKey string, seed uint64) func(t *testing.T) {
	return func(t *testing.T) {
		_, addr, err := h.invoicesSvc.CreateInvoice(h.ctx, h.merchant, h.addrs[configKey], h.mint, seed)
		require.NoError(t, err)
		h.addrs[key] = addr
	}
}

func (h *HelperData) CreateItem(key, invoiceKey string, seed, price uint64, expiryTs uint64, stock uint16) func(t *testing.T) {
	return func(t *testing.T) {
		_, addr, err := h.itemsSvc.CreateItem(h.ctx, h.merchant, h.addrs[invoiceKey], seed, price, nil, expiryTs, stock)
		require.NoError(t, err)
		h.addrs[key] = addr
	}
}

func (h *HelperData) FundBuyer(amount uint64) func(t *testing.T) {
	return func(t *testing.T) {
		holding, err := h.tokens.CreateHolding(h.ctx, h.buyer, h.mint)
		if errors.Cause(err) == token.ErrHoldingExists {
			holding, err = token.HoldingAddress(h.buyer, h.mint)
		}
		require.NoError(t, err)
		require.NoError(t, h.tokens.Deposit(holding, amount))
	}
}

func (h *HelperData) PayItem(receiptKey, invoiceKey, itemKey, meta string) func(t *testing.T) {
	return func(t *testing.T) {
		_, addr, err := h.paymentsSvc.PayItem(h.ctx, h.buyer, h.addrs[invoiceKey], h.addrs[itemKey], metadata(meta))
		require.NoError(t, err)
		h.addrs[receiptKey] = addr
	}
}

func (h *HelperData) PayItemFails(invoiceKey, itemKey, meta string, want error) func(t *testing.T) {
	return func(t *testing.T) {
		_, _, err := h.paymentsSvc.PayItem(h.ctx, h.buyer, h.addrs[invoiceKey], h.addrs[itemKey], metadata(meta))
		require.Error(t, err)
		assert.Equal(t, want, errors.Cause(err))
	}
}

// CheckVaults compares the invoice vault and fee vault balances.
func (h *HelperData) CheckVaults(invoiceKey string, wantVault, wantFee uint64) func(t *testing.T) {
	return func(t *testing.T) {
		var inv engine.InvoiceAccount
		require.NoError(t, h.records.View(h.ctx, func(tx store.Tx) error {
			return store.GetRecord(tx, h.addrs[invoiceKey], &inv)
		}))
		vaultBal, err := h.tokens.Balance(inv.Vault)
		require.NoError(t, err)
		feeBal, err := h.tokens.Balance(inv.FeeVault)
		require.NoError(t, err)
		assert.Equal(t, wantVault, vaultBal)
		assert.Equal(t, wantFee, feeBal)
	}
}

func (h *HelperData) CheckBuyerBalance(want uint64) func(t *testing.T) {
	return func(t *testing.T) {
		holding, err := token.HoldingAddress(h.buyer, h.mint)
		require.NoError(t, err)
		bal, err := h.tokens.Balance(holding)
		require.NoError(t, err)
		assert.Equal(t, want, bal)
	}
}

func (h *HelperData) CheckItemCounters(itemKey string, wantRemaining, wantCount uint16) func(t *testing.T) {
	return func(t *testing.T) {
		var item engine.InvoiceItem
		require.NoError(t, h.records.View(h.ctx, func(tx store.Tx) error {
			return store.GetRecord(tx, h.addrs[itemKey], &item)
		}))
		assert.Equal(t, wantRemaining, item.Remaining)
		assert.Equal(t, wantCount, item.Count)
	}
}

func (h *HelperData) CheckReceipt(receiptKey, itemKey string, wantPrice uint64, wantSeq uint16, meta string) func(t *testing.T) {
	return func(t *testing.T) {
		var rcpt engine.PaymentMetadata
		require.NoError(t, h.records.View(h.ctx, func(tx store.Tx) error {
			return store.GetRecord(tx, h.addrs[receiptKey], &rcpt)
		}))
		assert.Equal(t, h.addrs[itemKey], rcpt.InvoiceItem)
		recomputed, err := rcpt.RecordAddress(h.buyer)
		require.NoError(t, err)
		assert.Equal(t, h.addrs[receiptKey], recomputed)
		assert.Equal(t, wantPrice, rcpt.PricePaid)
		assert.Equal(t, wantSeq, rcpt.ItemSeqNumber)
		assert.Equal(t, metadata(meta), rcpt.BuyerMetadata)
	}
}

// invoiceProductID computes the product ID an invoice would derive at
// the given sequence number.
func (h *HelperData) invoiceProductID(t *testing.T, invoiceKey string, seq uint32) engine.Digest {
	t.Helper()
	inv := engine.InvoiceAccount{SequenceNumber: seq}
	return inv.DeriveProductID(h.addrs[invoiceKey])
}

func (h *HelperData) NoReceipt(itemKey string, count uint16) func(t *testing.T) {
	return func(t *testing.T) {
		addr, _, err := engine.PaymentMetadataAddress(h.buyer, h.addrs[itemKey], count)
		require.NoError(t, err)
		var rcpt engine.PaymentMetadata
		err = h.records.View(h.ctx, func(tx store.Tx) error {
			return store.GetRecord(tx, addr, &rcpt)
		})
		assert.Equal(t, engine.ErrRecordNotFound, errors.Cause(err))
	}
}
