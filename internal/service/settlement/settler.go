// Package settlement applies normalised payment events to orders.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"partsmarket/internal/domain/invoices"
	"partsmarket/internal/domain/notifications"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/outbox"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/webhooks"
	"partsmarket/internal/service/relay"
)

// Outcome reports what Apply did with an event.
type Outcome struct {
	Duplicate bool
	Ignored   bool
	Reason    string
	OrderID   uuid.UUID
	From      orders.PaymentStatus
	To        orders.PaymentStatus
}

type Settler struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

func New(db *gorm.DB, log *slog.Logger) *Settler {
	return &Settler{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func targetStatus(kind payments.EventKind) (orders.PaymentStatus, string, bool) {
	switch kind {
	case payments.EventChargeSuccess:
		return orders.StatusPaid, payments.LedgerSuccess, true
	case payments.EventChargeFailed:
		return orders.StatusFailed, payments.LedgerFailed, true
	case payments.EventRefund:
		return orders.StatusRefunded, payments.LedgerRefunded, true
	}
	return "", "", false
}

// Apply records the event and, unless it was seen before, moves the order
// and writes every side effect in one transaction. A rollback leaves no trace
// of the event, so a provider retry is processed from scratch.
func (s *Settler) Apply(ctx context.Context, ev payments.Event) (Outcome, error) {
	if ev.Provider == "" || ev.EventID == "" {
		return Outcome{}, fmt.Errorf("settlement: event without provider or id")
	}

	var out Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out = Outcome{}

		payload := ev.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("{}")
		}
		row := webhooks.Event{
			Provider:  ev.Provider,
			EventID:   ev.EventID,
			EventType: ev.Type,
			Payload:   datatypes.JSON(payload),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("record event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			out.Duplicate = true
			return nil
		}
		if row.ID == 0 {
			if err := tx.Where("provider = ? AND event_id = ?", ev.Provider, ev.EventID).First(&row).Error; err != nil {
				return fmt.Errorf("reload event: %w", err)
			}
		}

		ignore := func(reason string) error {
			out.Ignored = true
			out.Reason = reason
			return s.markEvent(tx, row.ID, reason)
		}

		to, ledgerStatus, ok := targetStatus(ev.Kind)
		if !ok {
			return ignore(fmt.Sprintf("unsupported event kind %q", ev.Kind))
		}

		order, err := s.resolveOrder(tx, ev)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ignore("order not found")
		}
		if err != nil {
			return err
		}
		out.OrderID, out.From, out.To = order.ID, order.PaymentStatus, to

		if err := orders.Transition(order.PaymentStatus, to); err != nil {
			if errors.Is(err, orders.ErrIllegalTransition) || errors.Is(err, orders.ErrNoTransition) {
				return ignore(err.Error())
			}
			return err
		}

		now := s.now()
		if err := s.moveOrder(tx, &order, to, now); err != nil {
			return err
		}

		amount := ev.AmountCents
		if amount <= 0 {
			amount = order.TotalCents
		}
		if err := s.appendLedger(tx, order, ev, ledgerStatus, amount); err != nil {
			return err
		}

		switch to {
		case orders.StatusPaid:
			if err := s.creditSpend(tx, order, amount, now); err != nil {
				return err
			}
		case orders.StatusRefunded:
			if err := s.debitSpend(tx, order, amount, now); err != nil {
				return err
			}
		}

		if err := s.notify(tx, order, ev.Kind, amount); err != nil {
			return err
		}

		if to == orders.StatusPaid {
			if _, err := relay.Enqueue(tx, outbox.KindInvoiceSend, "invoice:"+order.ID.String(),
				InvoicePayload{OrderID: order.ID.String()}); err != nil {
				return fmt.Errorf("enqueue invoice: %w", err)
			}
		}

		return tx.Model(&webhooks.Event{}).Where("id = ?", row.ID).
			Update("processed_at", now).Error
	})
	if err != nil {
		return Outcome{}, err
	}

	s.log.InfoContext(ctx, "payment event applied",
		"provider", ev.Provider,
		"event_id", ev.EventID,
		"kind", ev.Kind,
		"order_id", out.OrderID,
		"from", out.From,
		"to", out.To,
		"duplicate", out.Duplicate,
		"ignored", out.Ignored,
		"reason", out.Reason,
	)
	return out, nil
}

// InvoicePayload is the outbox body for outbox.KindInvoiceSend.
type InvoicePayload struct {
	OrderID string `json:"order_id"`
}

func (s *Settler) markEvent(tx *gorm.DB, id uint, reason string) error {
	return tx.Model(&webhooks.Event{}).Where("id = ?", id).Updates(map[string]any{
		"processing_error": reason,
		"processed_at":     s.now(),
	}).Error
}

// resolveOrder prefers the order id carried in event metadata and falls back
// to the payment reference.
func (s *Settler) resolveOrder(tx *gorm.DB, ev payments.Event) (orders.Order, error) {
	var o orders.Order
	if id, err := uuid.Parse(ev.OrderID); err == nil {
		err := tx.First(&o, "id = ?", id).Error
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return o, err
		}
	}
	if ev.Reference == "" {
		return o, gorm.ErrRecordNotFound
	}
	err := tx.First(&o, "payment_reference = ?", ev.Reference).Error
	return o, err
}

func (s *Settler) moveOrder(tx *gorm.DB, o *orders.Order, to orders.PaymentStatus, now time.Time) error {
	updates := map[string]any{"payment_status": to, "updated_at": now}
	if to == orders.StatusPaid {
		updates["paid_at"] = now
	}
	res := tx.Model(&orders.Order{}).
		Where("id = ? AND payment_status = ?", o.ID, o.PaymentStatus).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return orders.ErrConcurrentUpdate
	}
	o.PaymentStatus = to
	if to == orders.StatusPaid {
		o.PaidAt = &now
	}
	return nil
}

func (s *Settler) appendLedger(tx *gorm.DB, o orders.Order, ev payments.Event, status string, amount int64) error {
	currency := ev.Currency
	if currency == "" {
		currency = o.Currency
	}
	p := payments.Payment{
		OrderID:               o.ID,
		AmountCents:           amount,
		Currency:              currency,
		Provider:              ev.Provider,
		ProviderTransactionID: ev.TransactionID,
		Reference:             ev.Reference,
		Status:                status,
		Channel:               ev.Channel,
		CardType:              ev.Card.CardType,
		Last4:                 ev.Card.Last4,
		Bank:                  ev.Card.Bank,
		ExpMonth:              ev.Card.ExpMonth,
		ExpYear:               ev.Card.ExpYear,
	}
	if p.Reference == "" && o.PaymentReference != nil {
		p.Reference = *o.PaymentReference
	}
	if err := tx.Create(&p).Error; err != nil {
		return fmt.Errorf("append payment: %w", err)
	}
	return nil
}

func (s *Settler) creditSpend(tx *gorm.DB, o orders.Order, amount int64, now time.Time) error {
	if o.CustomerID == nil {
		return nil
	}
	sc := shops.ShopCustomer{
		ShopID:          o.ShopID,
		CustomerID:      *o.CustomerID,
		TotalSpentCents: amount,
		OrderCount:      1,
		LoyaltyTier:     shops.LoyaltyTier(amount),
		LastOrderAt:     &now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "shop_id"}, {Name: "customer_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_spent_cents": gorm.Expr("shop_customers.total_spent_cents + ?", amount),
			"order_count":       gorm.Expr("shop_customers.order_count + 1"),
			"last_order_at":     now,
			"updated_at":        now,
		}),
	}).Create(&sc).Error
	if err != nil {
		return fmt.Errorf("credit spend: %w", err)
	}
	return s.retier(tx, o.ShopID, *o.CustomerID)
}

func (s *Settler) debitSpend(tx *gorm.DB, o orders.Order, amount int64, now time.Time) error {
	if o.CustomerID == nil {
		return nil
	}
	err := tx.Model(&shops.ShopCustomer{}).
		Where("shop_id = ? AND customer_id = ?", o.ShopID, *o.CustomerID).
		Updates(map[string]any{
			"total_spent_cents": gorm.Expr("CASE WHEN total_spent_cents > ? THEN total_spent_cents - ? ELSE 0 END", amount, amount),
			"updated_at":        now,
		}).Error
	if err != nil {
		return fmt.Errorf("debit spend: %w", err)
	}
	return s.retier(tx, o.ShopID, *o.CustomerID)
}

// retier stores the tier derived from the current spend.
func (s *Settler) retier(tx *gorm.DB, shopID, customerID uuid.UUID) error {
	var sc shops.ShopCustomer
	err := tx.Where("shop_id = ? AND customer_id = ?", shopID, customerID).First(&sc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tier := shops.LoyaltyTier(sc.TotalSpentCents)
	if tier == sc.LoyaltyTier {
		return nil
	}
	return tx.Model(&shops.ShopCustomer{}).Where("id = ?", sc.ID).Update("loyalty_tier", tier).Error
}

func (s *Settler) notify(tx *gorm.DB, o orders.Order, kind payments.EventKind, amount int64) error {
	n := notifications.Notification{ShopID: o.ShopID}
	money := invoices.FormatRand(amount)
	switch kind {
	case payments.EventChargeSuccess:
		n.Type = notifications.TypePaymentReceived
		n.Title = "Payment received"
		n.Message = fmt.Sprintf("%s received for order %s.", money, o.ShortID())
	case payments.EventChargeFailed:
		n.Type = notifications.TypePaymentFailed
		n.Title = "Payment failed"
		n.Message = fmt.Sprintf("Payment of %s for order %s failed.", money, o.ShortID())
	case payments.EventRefund:
		n.Type = notifications.TypePaymentRefunded
		n.Title = "Payment refunded"
		n.Message = fmt.Sprintf("%s refunded for order %s.", money, o.ShortID())
	}

	data := map[string]any{"order_id": o.ID.String(), "amount_cents": amount}
	if o.PaymentReference != nil {
		data["reference"] = *o.PaymentReference
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	n.Data = datatypes.JSON(raw)

	key := fmt.Sprintf("payment:%s:%s", kind, o.ID)
	n.DedupKey = &key

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(&n).Error
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
