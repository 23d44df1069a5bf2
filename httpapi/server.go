// Package httpapi exposes the ledger operations over a JSON API.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/services/config"
	"github.com/airpayhq/airpay/services/invoices"
	"github.com/airpayhq/airpay/services/items"
	"github.com/airpayhq/airpay/services/payments"
)

func NewServer(
	configSvc *config.Service,
	invoicesSvc *invoices.Service,
	itemsSvc *items.Service,
	paymentsSvc *payments.Service,
) *Server {
	return &Server{
		config:   configSvc,
		invoices: invoicesSvc,
		items:    itemsSvc,
		payments: paymentsSvc,
		logger:   zap.L().Named("httpapi"),
	}
}

type Server struct {
	config   *config.Service
	invoices *invoices.Service
	items    *items.Service
	payments *payments.Service
	logger   *zap.Logger
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(Identity)

	r.Post("/v1/configs", s.handleCreateConfig)
	r.Post("/v1/configs/{address}/tokens", s.handleRegisterToken)
	r.Post("/v1/invoices", s.handleCreateInvoice)
	r.Post("/v1/invoices/{address}/items", s.handleCreateItem)
	r.Post("/v1/items/{address}/payments", s.handlePayItem)

	r.Get("/v1/configs/{address}", s.handleGetConfig)
	r.Get("/v1/invoices/{address}", s.handleGetInvoice)
	r.Get("/v1/items/{address}", s.handleGetItem)
	r.Get("/v1/receipts/{address}", s.handleGetReceipt)
	return r
}

type createConfigRequest struct {
	Seed        uint64 `json:"seed"`
	Fee         uint16 `json:"fee"`
	BasisPoints uint16 `json:"basis_points"`
}

type createConfigResponse struct {
	Address     string `json:"address"`
	Admin       string `json:"admin"`
	Fee         uint16 `json:"fee"`
	BasisPoints uint16 `json:"basis_points"`
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	var req createConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cfg, addr, err := s.config.CreateConfig(r.Context(), caller, req.Seed, req.Fee, req.BasisPoints)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createConfigResponse{
		Address:     addr.String(),
		Admin:       cfg.Admin.String(),
		Fee:         cfg.Fee,
		BasisPoints: cfg.BasisPoints,
	})
}

type registerTokenRequest struct {
	Mint string `json:"mint"`
}

type registerTokenResponse struct {
	FeeVault string `json:"fee_vault"`
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	configAddr, err := engine.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed config address")
		return
	}
	var req registerTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	mint, err := engine.ParseAddress(req.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed mint address")
		return
	}

	feeVault, err := s.config.RegisterPaymentToken(r.Context(), caller, configAddr, mint)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerTokenResponse{FeeVault: feeVault.String()})
}

type createInvoiceRequest struct {
	Config string `json:"config"`
	Mint   string `json:"mint"`
	Seed   uint64 `json:"seed"`
}

type createInvoiceResponse struct {
	Address     string `json:"address"`
	Merchant    string `json:"merchant"`
	Mint        string `json:"mint"`
	Vault       string `json:"vault"`
	FeeVault    string `json:"fee_vault"`
	Fee         uint16 `json:"fee"`
	BasisPoints uint16 `json:"basis_points"`
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	configAddr, err := engine.ParseAddress(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed config address")
		return
	}
	mint, err := engine.ParseAddress(req.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed mint address")
		return
	}

	acc, addr, err := s.invoices.CreateInvoice(r.Context(), caller, configAddr, mint, req.Seed)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createInvoiceResponse{
		Address:     addr.String(),
		Merchant:    acc.Merchant.String(),
		Mint:        acc.Mint.String(),
		Vault:       acc.Vault.String(),
		FeeVault:    acc.FeeVault.String(),
		Fee:         acc.Fee,
		BasisPoints: acc.BasisPoints,
	})
}

type createItemRequest struct {
	Seed      uint64  `json:"seed"`
	Price     uint64  `json:"price"`
	ProductID *string `json:"product_id,omitempty"`
	ExpiryTs  uint64  `json:"expiry_ts"`
	Stock     uint16  `json:"stock"`
}

type createItemResponse struct {
	Address    string `json:"address"`
	ProductID  string `json:"product_id"`
	Price      uint64 `json:"price"`
	CreationTs uint64 `json:"creation_ts"`
	ExpiryTs   uint64 `json:"expiry_ts"`
	Remaining  uint16 `json:"remaining"`
	Count      uint16 `json:"count"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	invoiceAddr, err := engine.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed invoice address")
		return
	}
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	var productID *engine.Digest
	if req.ProductID != nil {
		d, err := parseDigest(*req.ProductID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed product_id")
			return
		}
		productID = &d
	}

	item, addr, err := s.items.CreateItem(r.Context(), caller, invoiceAddr, req.Seed, req.Price, productID, req.ExpiryTs, req.Stock)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createItemResponse{
		Address:    addr.String(),
		ProductID:  hex.EncodeToString(item.ProductID[:]),
		Price:      item.Price,
		CreationTs: item.CreationTs,
		ExpiryTs:   item.ExpiryTs,
		Remaining:  item.Remaining,
	})
}

type payItemRequest struct {
	Invoice       string `json:"invoice"`
	BuyerMetadata string `json:"buyer_metadata"`
}

type payItemResponse struct {
	Receipt       string `json:"receipt"`
	PricePaid     uint64 `json:"price_paid"`
	ItemSeqNumber uint16 `json:"item_seq_number"`
}

func (s *Server) handlePayItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	itemAddr, err := engine.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed item address")
		return
	}
	var req payItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	invoiceAddr, err := engine.ParseAddress(req.Invoice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed invoice address")
		return
	}
	metadata, err := parseDigest(req.BuyerMetadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed buyer_metadata")
		return
	}

	receipt, receiptAddr, err := s.payments.PayItem(r.Context(), caller, invoiceAddr, itemAddr, metadata)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payItemResponse{
		Receipt:       receiptAddr.String(),
		PricePaid:     receipt.PricePaid,
		ItemSeqNumber: receipt.ItemSeqNumber,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	addr, err := engine.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed config address")
		return
	}
	cfg, err := s.config.GetConfig(r.Context(), addr)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createConfigResponse{
		Address:     addr.String(),
		Admin:       cfg.Admin.String(),
		Fee:         cfg.Fee,
		BasisPoints: cfg.BasisPoints,
	})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	addr, err := engine.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed invoice address")
		return
	}
	acc, err := s.invoices.GetInvoice(r.Context(), addr)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createInvoiceResponse{
		Address:     addr.String(),
		Merchant:    acc.Merchant.String(),
		Mint:        acc.Mint.String(),
		Vault:       acc.Vault.String(),
		FeeVault:    acc.FeeVault.String(),
		Fee:         acc.Fee,
		BasisPoints: acc.BasisPoints,
	})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	addr, err := engine.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed item address")
		return
	}
	item, err := s.items.GetItem(r.Context(), addr)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createItemResponse{
		Address:    addr.String(),
		ProductID:  hex.EncodeToString(item.ProductID[:]),
		Price:      item.Price,
		CreationTs: item.CreationTs,
		ExpiryTs:   item.ExpiryTs,
		Remaining:  item.Remaining,
		Count:      item.Count,
	})
}

type getReceiptResponse struct {
	Receipt       string `json:"receipt"`
	Item          string `json:"item"`
	PricePaid     uint64 `json:"price_paid"`
	ItemSeqNumber uint16 `json:"item_seq_number"`
	BuyerMetadata string `json:"buyer_metadata"`
}

// Receipt addresses are derived from the buyer, so the caller
// identity doubles as the authentication input: only the receipt's
// own buyer resolves it.
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	addr, err := engine.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed receipt address")
		return
	}
	receipt, err := s.payments.GetReceipt(r.Context(), caller, addr)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getReceiptResponse{
		Receipt:       addr.String(),
		Item:          receipt.InvoiceItem.String(),
		PricePaid:     receipt.PricePaid,
		ItemSeqNumber: receipt.ItemSeqNumber,
		BuyerMetadata: hex.EncodeToString(receipt.BuyerMetadata[:]),
	})
}

func parseDigest(s string) (engine.Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return engine.Digest{}, err
	}
	if len(raw) != len(engine.Digest{}) {
		return engine.Digest{}, errors.Errorf("digest must be %d bytes", len(engine.Digest{}))
	}
	var d engine.Digest
	copy(d[:], raw)
	return d, nil
}
