package httpapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

type apiWorld struct {
	router http.Handler
	tokens *token.MemoryEngine

	admin    engine.Address
	merchant engine.Address
	buyer    engine.Address
	mint     engine.Address
}

func setupAPI(t *testing.T) *apiWorld {
	t.Helper()

	records := store.NewMemory()
	tokens := token.NewMemoryEngine()

	w := &apiWorld{tokens: tokens}
	w.admin[0] = 1
	w.merchant[0] = 2
	w.buyer[0] = 3
	w.mint[0] = 4
	require.NoError(t, tokens.RegisterMint(w.mint, 6))

	srv := NewServer(
		config.NewService(records, tokens),
		invoices.NewService(records, tokens),
		items.NewService(records),
		payments.NewService(records, tokens, nil),
	)
	w.router = srv.Router()
	return w
}

func (w *apiWorld) do(t *testing.T, caller engine.Address, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(IdentityHeader, caller.String())
	rec := httptest.NewRecorder()
	w.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestServer_FullFlow(t *testing.T) {
	w := setupAPI(t)
	ctx := context.Background()

	rec := w.do(t, w.admin, http.MethodPost, "/v1/configs", map[string]interface{}{
		"seed": 1, "fee": 100, "basis_points": 10000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cfg createConfigResponse
	decode(t, rec, &cfg)
	assert.Equal(t, w.admin.String(), cfg.Admin)
	assert.EqualValues(t, 100, cfg.Fee)

	rec = w.do(t, w.admin, http.MethodPost, "/v1/configs/"+cfg.Address+"/tokens", map[string]interface{}{
		"mint": w.mint.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg registerTokenResponse
	decode(t, rec, &reg)

	rec = w.do(t, w.merchant, http.MethodPost, "/v1/invoices", map[string]interface{}{
		"config": cfg.Address, "mint": w.mint.String(), "seed": 7,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv createInvoiceResponse
	decode(t, rec, &inv)
	assert.Equal(t, w.merchant.String(), inv.Merchant)
	assert.Equal(t, reg.FeeVault, inv.FeeVault)

	rec = w.do(t, w.merchant, http.MethodPost, "/v1/invoices/"+inv.Address+"/items", map[string]interface{}{
		"seed": 1, "price": 1_000_000, "expiry_ts": 4_000_000_000, "stock": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item createItemResponse
	decode(t, rec, &item)
	assert.EqualValues(t, 2, item.Remaining)

	buyerHolding, err := w.tokens.CreateHolding(ctx, w.buyer, w.mint)
	require.NoError(t, err)
	require.NoError(t, w.tokens.Deposit(buyerHolding, 1_000_000))

	metadata := strings.Repeat("ab", 32)
	rec = w.do(t, w.buyer, http.MethodPost, "/v1/items/"+item.Address+"/payments", map[string]interface{}{
		"invoice": inv.Address, "buyer_metadata": metadata,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pay payItemResponse
	decode(t, rec, &pay)
	assert.EqualValues(t, 1_000_000, pay.PricePaid)
	assert.EqualValues(t, 0, pay.ItemSeqNumber)

	vault, err := engine.ParseAddress(inv.Vault)
	require.NoError(t, err)
	feeVault, err := engine.ParseAddress(inv.FeeVault)
	require.NoError(t, err)
	vaultBal, err := w.tokens.Balance(vault)
	require.NoError(t, err)
	feeBal, err := w.tokens.Balance(feeVault)
	require.NoError(t, err)
	assert.EqualValues(t, 990_000, vaultBal)
	assert.EqualValues(t, 10_000, feeBal)

	rec = w.do(t, w.buyer, http.MethodGet, "/v1/configs/"+cfg.Address, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gotCfg createConfigResponse
	decode(t, rec, &gotCfg)
	assert.Equal(t, cfg, gotCfg)

	rec = w.do(t, w.buyer, http.MethodGet, "/v1/invoices/"+inv.Address, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gotInv createInvoiceResponse
	decode(t, rec, &gotInv)
	assert.Equal(t, inv, gotInv)

	rec = w.do(t, w.buyer, http.MethodGet, "/v1/items/"+item.Address, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gotItem createItemResponse
	decode(t, rec, &gotItem)
	assert.EqualValues(t, 1, gotItem.Remaining)
	assert.EqualValues(t, 1, gotItem.Count)

	rec = w.do(t, w.buyer, http.MethodGet, "/v1/receipts/"+pay.Receipt, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gotRcpt getReceiptResponse
	decode(t, rec, &gotRcpt)
	assert.Equal(t, item.Address, gotRcpt.Item)
	assert.EqualValues(t, 1_000_000, gotRcpt.PricePaid)
	assert.Equal(t, metadata, gotRcpt.BuyerMetadata)

	// Receipt addresses bind their buyer: anyone else gets a mismatch.
	rec = w.do(t, w.merchant, http.MethodGet, "/v1/receipts/"+pay.Receipt, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_GetUnknownRecord(t *testing.T) {
	w := setupAPI(t)

	var bogus engine.Address
	bogus[0] = 77
	rec := w.do(t, w.buyer, http.MethodGet, "/v1/configs/"+bogus.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = w.do(t, w.buyer, http.MethodGet, "/v1/items/"+bogus.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MissingIdentity(t *testing.T) {
	w := setupAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/configs", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	w.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_MalformedIdentity(t *testing.T) {
	w := setupAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/configs", bytes.NewBufferString("{}"))
	req.Header.Set(IdentityHeader, "not-base58-0OIl")
	rec := httptest.NewRecorder()
	w.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	w := setupAPI(t)

	rec := w.do(t, w.admin, http.MethodPost, "/v1/configs", map[string]interface{}{
		"seed": 1, "fee": 100, "basis_points": 10000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cfg createConfigResponse
	decode(t, rec, &cfg)

	t.Run("duplicate config", func(t *testing.T) {
		rec := w.do(t, w.admin, http.MethodPost, "/v1/configs", map[string]interface{}{
			"seed": 1, "fee": 50, "basis_points": 10000,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("zero basis points", func(t *testing.T) {
		rec := w.do(t, w.admin, http.MethodPost, "/v1/configs", map[string]interface{}{
			"seed": 2, "fee": 100, "basis_points": 0,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("non-admin token registration", func(t *testing.T) {
		rec := w.do(t, w.merchant, http.MethodPost, "/v1/configs/"+cfg.Address+"/tokens", map[string]interface{}{
			"mint": w.mint.String(),
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invoice for unregistered token", func(t *testing.T) {
		rec := w.do(t, w.merchant, http.MethodPost, "/v1/invoices", map[string]interface{}{
			"config": cfg.Address, "mint": w.mint.String(), "seed": 1,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown config", func(t *testing.T) {
		var bogus engine.Address
		bogus[0] = 99
		rec := w.do(t, w.merchant, http.MethodPost, "/v1/invoices", map[string]interface{}{
			"config": bogus.String(), "mint": w.mint.String(), "seed": 1,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_PayItemBadDigest(t *testing.T) {
	w := setupAPI(t)

	var itemAddr engine.Address
	itemAddr[0] = 9
	var invAddr engine.Address
	invAddr[0] = 10

	rec := w.do(t, w.buyer, http.MethodPost, "/v1/items/"+itemAddr.String()+"/payments", map[string]interface{}{
		"invoice": invAddr.String(), "buyer_metadata": "zz",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	short := hex.EncodeToString(make([]byte, 16))
	rec = w.do(t, w.buyer, http.MethodPost, "/v1/items/"+itemAddr.String()+"/payments", map[string]interface{}{
		"invoice": invAddr.String(), "buyer_metadata": short,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
