// Package checkout starts provider checkouts for orders and verifies them.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"partsmarket/internal/apperr"
	"partsmarket/internal/domain/access"
	"partsmarket/internal/domain/audit"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/domain/shops"
)

type InitRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Email       string `json:"email"`
	ShopID      string `json:"shop_id"`
	CustomerID  string `json:"customer_id,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type Initializer struct {
	db       *gorm.DB
	gateway  payments.Gateway
	prefix   string
	currency string
	log      *slog.Logger
	now      func() time.Time
}

func NewInitializer(db *gorm.DB, gateway payments.Gateway, prefix, currency string, log *slog.Logger) *Initializer {
	return &Initializer{
		db:       db,
		gateway:  gateway,
		prefix:   prefix,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

// Reference builds PREFIX-<first 8 of order id>-<unix millis>.
func Reference(prefix string, o *orders.Order, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", prefix, o.ShortID(), at.UnixMilli())
}

func (in *Initializer) Initialize(ctx context.Context, actor access.Actor, req InitRequest) (payments.CheckoutSession, error) {
	var missing []string
	if strings.TrimSpace(req.OrderID) == "" {
		missing = append(missing, "order_id")
	}
	if req.AmountCents <= 0 {
		missing = append(missing, "amount_cents")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.ShopID) == "" {
		missing = append(missing, "shop_id")
	}
	if len(missing) > 0 {
		return payments.CheckoutSession{}, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return payments.CheckoutSession{}, apperr.Validation("order_id is not a valid id")
	}
	shopID, err := uuid.Parse(req.ShopID)
	if err != nil {
		return payments.CheckoutSession{}, apperr.Validation("shop_id is not a valid id")
	}

	db := in.db.WithContext(ctx)

	var order orders.Order
	if err := db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payments.CheckoutSession{}, apperr.NotFound("order")
		}
		return payments.CheckoutSession{}, err
	}
	var shop shops.Shop
	if err := db.First(&shop, "id = ?", order.ShopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payments.CheckoutSession{}, apperr.NotFound("shop")
		}
		return payments.CheckoutSession{}, err
	}

	if order.ShopID != shopID {
		return payments.CheckoutSession{}, apperr.Forbidden("order does not belong to this shop")
	}
	if !access.CanViewOrder(actor, order, shop) {
		return payments.CheckoutSession{}, apperr.Forbidden("not allowed to pay for this order")
	}
	if req.CustomerID != "" && (order.CustomerID == nil || order.CustomerID.String() != req.CustomerID) {
		return payments.CheckoutSession{}, apperr.Validation("customer_id does not match the order")
	}
	if req.AmountCents != order.TotalCents {
		return payments.CheckoutSession{}, apperr.Validation("amount_cents does not match the order total")
	}
	if order.PaymentStatus == orders.StatusPaid {
		return payments.CheckoutSession{}, apperr.Validation("order already paid")
	}
	if err := orders.Transition(order.PaymentStatus, orders.StatusPending); err != nil {
		return payments.CheckoutSession{}, apperr.Validation("order cannot be paid while %s", order.PaymentStatus)
	}

	reference := Reference(in.prefix, &order, in.now())
	meta := map[string]string{
		"order_id": order.ID.String(),
		"shop_id":  order.ShopID.String(),
	}
	if order.CustomerID != nil {
		meta["customer_id"] = order.CustomerID.String()
	}

	session, err := in.gateway.Initialize(ctx, payments.CheckoutRequest{
		Reference:   reference,
		AmountCents: order.TotalCents,
		Currency:    in.currency,
		Email:       req.Email,
		CallbackURL: req.CallbackURL,
		Metadata:    meta,
	})
	if err != nil {
		in.log.WarnContext(ctx, "checkout initialize rejected", "order_id", order.ID, "provider", in.gateway.Name(), "error", err)
		return payments.CheckoutSession{}, err
	}
	if session.Reference == "" {
		session.Reference = reference
	}

	provider := in.gateway.Name()
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&orders.Order{}).
			Where("id = ? AND payment_status = ?", order.ID, order.PaymentStatus).
			Updates(map[string]any{
				"payment_status":      orders.StatusPending,
				"payment_reference":   session.Reference,
				"payment_access_code": session.AccessCode,
				"payment_provider":    provider,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return orders.ErrConcurrentUpdate
		}
		return audit.Record(tx, "payment.initialized", "order", order.ID.String(), actor.Label(), map[string]any{
			"reference":    session.Reference,
			"provider":     provider,
			"amount_cents": order.TotalCents,
			"currency":     in.currency,
		})
	})
	if err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("persist checkout: %w", err)
	}

	in.log.InfoContext(ctx, "checkout initialized", "order_id", order.ID, "reference", session.Reference, "provider", provider)
	return session, nil
}
