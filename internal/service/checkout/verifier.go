package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"partsmarket/internal/apperr"
	"partsmarket/internal/domain/access"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/service/settlement"
)

type VerifyResult struct {
	Reference   string               `json:"reference"`
	Status      string               `json:"status"`
	AmountCents int64                `json:"amount_cents"`
	Currency    string               `json:"currency"`
	PaidAt      *time.Time           `json:"paid_at,omitempty"`
	OrderStatus orders.PaymentStatus `json:"order_status"`
}

type Verifier struct {
	db      *gorm.DB
	gateway payments.Gateway
	settler *settlement.Settler
	log     *slog.Logger
}

func NewVerifier(db *gorm.DB, gateway payments.Gateway, settler *settlement.Settler, log *slog.Logger) *Verifier {
	return &Verifier{db: db, gateway: gateway, settler: settler, log: log}
}

// Verify asks the provider for the current state of a checkout. A success the
// webhook has not delivered yet is applied here under the same event id the
// webhook would use.
func (v *Verifier) Verify(ctx context.Context, actor access.Actor, reference string) (VerifyResult, error) {
	if reference == "" {
		return VerifyResult{}, apperr.Validation("reference is required")
	}
	db := v.db.WithContext(ctx)

	var order orders.Order
	if err := db.First(&order, "payment_reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VerifyResult{}, apperr.NotFound("payment reference")
		}
		return VerifyResult{}, err
	}
	var shop shops.Shop
	if err := db.First(&shop, "id = ?", order.ShopID).Error; err != nil {
		return VerifyResult{}, err
	}
	if !access.CanViewOrder(actor, order, shop) {
		return VerifyResult{}, apperr.Forbidden("not allowed to view this payment")
	}

	lookup := payments.Lookup{Reference: reference}
	if order.PaymentAccessCode != nil {
		lookup.AccessCode = *order.PaymentAccessCode
	}
	txn, err := v.gateway.Verify(ctx, lookup)
	if err != nil {
		return VerifyResult{}, err
	}

	if txn.Status == payments.TxSuccess && order.PaymentStatus != orders.StatusPaid && txn.ID != "" {
		payload, _ := json.Marshal(txn)
		out, err := v.settler.Apply(ctx, payments.Event{
			Provider:      v.gateway.Name(),
			EventID:       payments.EventIDFor(payments.EventChargeSuccess, txn.ID),
			Type:          "verify",
			Kind:          payments.EventChargeSuccess,
			OrderID:       order.ID.String(),
			Reference:     reference,
			TransactionID: txn.ID,
			AmountCents:   txn.AmountCents,
			Currency:      txn.Currency,
			Channel:       txn.Channel,
			Card:          txn.Card,
			Payload:       payload,
		})
		if err != nil {
			return VerifyResult{}, fmt.Errorf("settle verified payment: %w", err)
		}
		if !out.Duplicate && !out.Ignored {
			v.log.InfoContext(ctx, "payment settled by verification", "order_id", order.ID, "reference", reference)
		}
		if err := db.First(&order, "id = ?", order.ID).Error; err != nil {
			return VerifyResult{}, err
		}
	}

	currency := txn.Currency
	if currency == "" {
		currency = order.Currency
	}
	paidAt := txn.PaidAt
	if paidAt == nil {
		paidAt = order.PaidAt
	}
	return VerifyResult{
		Reference:   reference,
		Status:      txn.Status,
		AmountCents: txn.AmountCents,
		Currency:    currency,
		PaidAt:      paidAt,
		OrderStatus: order.PaymentStatus,
	}, nil
}
