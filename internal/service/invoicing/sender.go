// Package invoicing numbers, renders and emails invoices for paid orders.
package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"partsmarket/internal/apperr"
	"partsmarket/internal/domain/access"
	"partsmarket/internal/domain/audit"
	"partsmarket/internal/domain/invoices"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/requests"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/users"
	"partsmarket/internal/infra/mail"
	"partsmarket/internal/service/relay"
)

const numberAttempts = 5

type Result struct {
	InvoiceNumber string `json:"invoice_number"`
	MessageID     string `json:"message_id"`
	SentTo        string `json:"sent_to"`
}

type Sender struct {
	db     *gorm.DB
	mailer mail.Mailer
	log    *slog.Logger
	now    func() time.Time
}

func NewSender(db *gorm.DB, mailer mail.Mailer, log *slog.Logger) *Sender {
	return &Sender{db: db, mailer: mailer, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Send invoices one paid order. The invoice number is assigned on the first
// call and reused afterwards; a mail failure keeps the number.
func (s *Sender) Send(ctx context.Context, actor access.Actor, orderID uuid.UUID) (Result, error) {
	db := s.db.WithContext(ctx)

	var order orders.Order
	if err := db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, apperr.NotFound("order")
		}
		return Result{}, err
	}

	var shop shops.Shop
	if err := db.First(&shop, "id = ?", order.ShopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, apperr.NotFound("shop")
		}
		return Result{}, err
	}
	if !access.CanManageShop(actor, shop) {
		return Result{}, apperr.Forbidden("only the shop owner can send invoices")
	}
	if order.PaymentStatus != orders.StatusPaid {
		return Result{}, apperr.Validation("order is %s, only paid orders are invoiced", order.PaymentStatus)
	}

	var customer *users.Profile
	if order.CustomerID != nil {
		var p users.Profile
		err := db.First(&p, "id = ?", *order.CustomerID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, err
		}
		if err == nil {
			customer = &p
		}
	}
	if customer == nil || customer.Email == "" {
		return Result{}, apperr.Validation("order has no customer email to send the invoice to")
	}

	var request *requests.PartRequest
	if order.RequestID != nil {
		var r requests.PartRequest
		err := db.First(&r, "id = ?", *order.RequestID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, err
		}
		if err == nil {
			request = &r
		}
	}

	number, err := s.assignNumber(db, &order)
	if err != nil {
		return Result{}, fmt.Errorf("assign invoice number: %w", err)
	}

	inv := invoices.Compose(number, order, shop, request, customer, s.now())
	html, err := invoices.Render(inv)
	if err != nil {
		return Result{}, fmt.Errorf("render invoice: %w", err)
	}

	msgID, err := s.mailer.Send(ctx, mail.Message{
		To:      customer.Email,
		Subject: invoices.Subject(inv),
		HTML:    html,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "invoice email failed", "order_id", order.ID, "invoice", number, "error", err)
		return Result{}, err
	}

	if err := audit.Record(db, "invoice.sent", "order", order.ID.String(), actor.Label(), map[string]any{
		"invoice_number": number,
		"message_id":     msgID,
		"to":             customer.Email,
		"total_cents":    inv.TotalCents,
	}); err != nil {
		s.log.ErrorContext(ctx, "audit invoice.sent failed", "order_id", order.ID, "error", err)
	}

	s.log.InfoContext(ctx, "invoice sent", "order_id", order.ID, "invoice", number, "message_id", msgID)
	return Result{InvoiceNumber: number, MessageID: msgID, SentTo: customer.Email}, nil
}

// assignNumber gives the order the next number of the current year exactly
// once. Two senders racing for the same number collide on the unique index
// and the loser retries with a fresh maximum.
func (s *Sender) assignNumber(db *gorm.DB, order *orders.Order) (string, error) {
	if order.InvoiceNumber != nil {
		return *order.InvoiceNumber, nil
	}

	for attempt := 0; attempt < numberAttempts; attempt++ {
		year := s.now().Year()

		var last []string
		err := db.Model(&orders.Order{}).
			Where("invoice_number LIKE ?", invoices.YearPrefix(year)+"%").
			Order("LENGTH(invoice_number) DESC, invoice_number DESC").
			Limit(1).
			Pluck("invoice_number", &last).Error
		if err != nil {
			return "", err
		}
		prev := ""
		if len(last) > 0 {
			prev = last[0]
		}
		next := invoices.NextNumber(prev, year)

		res := db.Model(&orders.Order{}).
			Where("id = ? AND invoice_number IS NULL", order.ID).
			Update("invoice_number", next)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				continue
			}
			return "", res.Error
		}
		if res.RowsAffected == 0 {
			// Someone else numbered this order first.
			var current orders.Order
			if err := db.Select("invoice_number").First(&current, "id = ?", order.ID).Error; err != nil {
				return "", err
			}
			if current.InvoiceNumber == nil {
				return "", fmt.Errorf("order %s lost its invoice number", order.ID)
			}
			order.InvoiceNumber = current.InvoiceNumber
			return *current.InvoiceNumber, nil
		}
		order.InvoiceNumber = &next
		return next, nil
	}
	return "", fmt.Errorf("no free invoice number after %d attempts", numberAttempts)
}

// OutboxHandler adapts Send to the relay for outbox.KindInvoiceSend messages.
// Errors that no retry can fix park the message immediately.
func (s *Sender) OutboxHandler() relay.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var body struct {
			OrderID string `json:"order_id"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return relay.Permanent(fmt.Errorf("decode payload: %w", err))
		}
		id, err := uuid.Parse(body.OrderID)
		if err != nil {
			return relay.Permanent(fmt.Errorf("bad order id %q", body.OrderID))
		}

		_, err = s.Send(ctx, access.System(), id)
		if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrNotFound) {
			return relay.Permanent(err)
		}
		return err
	}
}
