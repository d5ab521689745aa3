package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"partsmarket/internal/apperr"
	"partsmarket/internal/domain/access"
	"partsmarket/internal/domain/audit"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/requests"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/users"
	"partsmarket/internal/infra/mail"
	"partsmarket/internal/testutil"
)

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-" + uuid.NewString()[:6], nil
}

type fixture struct {
	db     *gorm.DB
	sender *Sender
	mailer *fakeMailer
	shop   shops.Shop
	owner  access.Actor
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.DB(t)
	m := &fakeMailer{}
	s := NewSender(db, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }

	shop := shops.Shop{OwnerID: uuid.New(), Name: "Brake & Clutch Centre", Email: "shop@example.com", VATNumber: "4123456789"}
	require.NoError(t, db.Create(&shop).Error)

	return fixture{db: db, sender: s, mailer: m, shop: shop, owner: access.Actor{UserID: shop.OwnerID, Role: users.RoleShopOwner}}
}

func (f fixture) paidOrder(t *testing.T, total int64) orders.Order {
	t.Helper()
	customer := users.Profile{ID: uuid.New(), FullName: "Thandi Mokoena", Email: uuid.NewString()[:8] + "@example.com"}
	require.NoError(t, f.db.Create(&customer).Error)
	req := requests.PartRequest{PartName: "Front brake pads", PartNumber: "BP-221", VehicleMake: "Toyota", VehicleModel: "Corolla", VehicleYear: 2015, Quantity: 2}
	require.NoError(t, f.db.Create(&req).Error)

	now := time.Now().UTC()
	o := orders.Order{
		ShopID:        f.shop.ID,
		CustomerID:    &customer.ID,
		RequestID:     &req.ID,
		TotalCents:    total,
		Currency:      "ZAR",
		PaymentStatus: orders.StatusPaid,
		PaidAt:        &now,
	}
	require.NoError(t, f.db.Create(&o).Error)
	return o
}

func TestSendAssignsNumberAndEmails(t *testing.T) {
	f := setup(t)
	o := f.paidOrder(t, 150075)

	res, err := f.sender.Send(context.Background(), f.owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00001", res.InvoiceNumber)
	assert.NotEmpty(t, res.MessageID)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, res.SentTo, msg.To)
	assert.Contains(t, msg.Subject, "INV-2026-00001")
	assert.Contains(t, msg.HTML, "R 1,725.86")
	assert.Contains(t, msg.HTML, "Front brake pads")

	var stored orders.Order
	require.NoError(t, f.db.First(&stored, "id = ?", o.ID).Error)
	require.NotNil(t, stored.InvoiceNumber)
	assert.Equal(t, "INV-2026-00001", *stored.InvoiceNumber)

	var entry audit.Entry
	require.NoError(t, f.db.Where("action = ?", "invoice.sent").First(&entry).Error)
	assert.Equal(t, o.ID.String(), entry.EntityID)
	assert.Equal(t, f.shop.OwnerID.String(), entry.Actor)
}

func TestResendKeepsNumber(t *testing.T) {
	f := setup(t)
	o := f.paidOrder(t, 1000)

	first, err := f.sender.Send(context.Background(), f.owner, o.ID)
	require.NoError(t, err)
	second, err := f.sender.Send(context.Background(), f.owner, o.ID)
	require.NoError(t, err)

	assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)
	assert.Len(t, f.mailer.sent, 2)
}

func TestNumbersContinueFromYearMaximum(t *testing.T) {
	f := setup(t)
	for _, n := range []string{"INV-2025-00990", "INV-2026-00041", "INV-2026-00009"} {
		num := n
		o := orders.Order{ShopID: f.shop.ID, TotalCents: 1, Currency: "ZAR", PaymentStatus: orders.StatusPaid, InvoiceNumber: &num}
		require.NoError(t, f.db.Create(&o).Error)
	}
	o := f.paidOrder(t, 1000)

	res, err := f.sender.Send(context.Background(), f.owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00042", res.InvoiceNumber)
}

func TestSendRejectsUnpaidOrder(t *testing.T) {
	f := setup(t)
	o := f.paidOrder(t, 1000)
	require.NoError(t, f.db.Model(&orders.Order{}).Where("id = ?", o.ID).Update("payment_status", orders.StatusPending).Error)

	_, err := f.sender.Send(context.Background(), f.owner, o.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.mailer.sent)
}

func TestSendErrors(t *testing.T) {
	f := setup(t)
	o := f.paidOrder(t, 1000)

	_, err := f.sender.Send(context.Background(), f.owner, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.sender.Send(context.Background(), access.Actor{UserID: uuid.New(), Role: users.RoleCustomer}, o.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestMailFailureKeepsNumber(t *testing.T) {
	f := setup(t)
	o := f.paidOrder(t, 1000)
	f.mailer.err = mail.ErrSend

	_, err := f.sender.Send(context.Background(), f.owner, o.ID)
	assert.ErrorIs(t, err, mail.ErrSend)

	var stored orders.Order
	require.NoError(t, f.db.First(&stored, "id = ?", o.ID).Error)
	require.NotNil(t, stored.InvoiceNumber)
	assert.Equal(t, "INV-2026-00001", *stored.InvoiceNumber)
}

func TestOutboxHandler(t *testing.T) {
	f := setup(t)
	o := f.paidOrder(t, 1000)
	h := f.sender.OutboxHandler()

	payload, _ := json.Marshal(map[string]string{"order_id": o.ID.String()})
	require.NoError(t, h(context.Background(), payload))
	assert.Len(t, f.mailer.sent, 1)

	err := h(context.Background(), json.RawMessage(`{"order_id":"nope"}`))
	require.Error(t, err)

	f.mailer.err = errors.New("connection reset")
	err = h(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
