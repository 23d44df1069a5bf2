package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/provider/token"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the ledger error taxonomy onto HTTP statuses.
// The caller sees the terminal error name; nothing is retried here.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	cause := errors.Cause(err)
	status := http.StatusInternalServerError

	switch cause {
	case engine.ErrInvoiceExpired, engine.ErrItemSoldOut,
		engine.ErrStockUnderflow, engine.ErrCountOverflow,
		engine.ErrZeroBasisPoints, engine.ErrAmountOverflow:
		status = http.StatusConflict
	case engine.ErrRecordExists:
		status = http.StatusConflict
	case engine.ErrRecordNotFound:
		status = http.StatusNotFound
	case engine.ErrAddressMismatch, engine.ErrBadRecordData:
		status = http.StatusUnprocessableEntity
	case engine.ErrUnauthorized:
		status = http.StatusForbidden
	case token.ErrInsufficientFunds:
		status = http.StatusPaymentRequired
	case token.ErrMintNotFound, token.ErrHoldingNotFound:
		status = http.StatusNotFound
	case token.ErrHoldingExists:
		status = http.StatusConflict
	case token.ErrDecimalsMismatch, token.ErrMintMismatch:
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed.", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, cause.Error())
}
