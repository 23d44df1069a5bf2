package payments

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/provider/token"
)

// SettledSubject carries SettledEvent messages for every successful
// settlement.
const SettledSubject = "airpay.payments.settled"

// SettledEvent is the over-the-wire notification of one settled
// payment. Amounts are raw base units; PriceUnits is the display form
// at the mint's decimal precision.
type SettledEvent struct {
	EventID    string `json:"event_id"`
	Receipt    string `json:"receipt"`
	Invoice    string `json:"invoice"`
	Item       string `json:"item"`
	Buyer      string `json:"buyer"`
	Mint       string `json:"mint"`
	Price      uint64 `json:"price"`
	Net        uint64 `json:"net"`
	Fee        uint64 `json:"fee"`
	PriceUnits string `json:"price_units"`
	SeqNumber  uint16 `json:"seq_number"`
}

func (s *Service) publishSettled(ctx context.Context, buyer, invoiceAddr, itemAddr, receiptAddr engine.Address, inv *engine.InvoiceAccount, receipt *engine.PaymentMetadata, netAmount, feeAmount uint64) {
	if s.nc == nil {
		return
	}

	event := SettledEvent{
		EventID:   uuid.NewString(),
		Receipt:   receiptAddr.String(),
		Invoice:   invoiceAddr.String(),
		Item:      itemAddr.String(),
		Buyer:     buyer.String(),
		Mint:      inv.Mint.String(),
		Price:     receipt.PricePaid,
		Net:       netAmount,
		Fee:       feeAmount,
		SeqNumber: receipt.ItemSeqNumber,
	}
	if decimals, err := s.tokens.MintDecimals(ctx, inv.Mint); err == nil {
		event.PriceUnits = token.Units(receipt.PricePaid, decimals).String()
	}

	if err := s.nc.Publish(SettledSubject, event); err != nil {
		s.logger.Warn("Failed publish settled event.",
			zap.Error(err),
			zap.String("receipt", event.Receipt),
		)
	}
}
