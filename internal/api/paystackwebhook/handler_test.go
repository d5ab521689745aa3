package paystackwebhook

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"partsmarket/internal/domain/notifications"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/webhooks"
	"partsmarket/internal/infra/paystack"
	"partsmarket/internal/service/settlement"
	"partsmarket/internal/testutil"
)

const secret = "sk_test_webhook"

func setup(t *testing.T) (*gin.Engine, *gorm.DB, orders.Order) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	shop := shops.Shop{OwnerID: uuid.New(), Name: "Midas Rosebank"}
	require.NoError(t, db.Create(&shop).Error)
	customer := uuid.New()
	ref := "APM-0000abcd-1700000000000"
	order := orders.Order{ShopID: shop.ID, CustomerID: &customer, TotalCents: 150075, Currency: "ZAR", PaymentStatus: orders.StatusPending, PaymentReference: &ref}
	require.NoError(t, db.Create(&order).Error)

	r := gin.New()
	r.POST("/webhooks/paystack", NewHandler(secret, settlement.New(db, log), log).Receive)
	return r, db, order
}

func post(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(paystack.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func successBody(o orders.Order) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.success","data":{"id":4099260516,"status":"success","reference":%q,"amount":150075,"currency":"ZAR","channel":"card","metadata":{"order_id":%q},"authorization":{"last4":"4081","card_type":"visa ","bank":"TEST BANK","exp_month":"12","exp_year":"2030"}}}`,
		*o.PaymentReference, o.ID.String()))
}

func TestRejectsBadSignature(t *testing.T) {
	r, db, o := setup(t)
	body := successBody(o)

	assert.Equal(t, http.StatusUnauthorized, post(r, body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, body, paystack.Sign(body, "wrong-secret")).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, body, "zz-not-hex").Code)

	var n int64
	require.NoError(t, db.Model(&webhooks.Event{}).Count(&n).Error)
	assert.Zero(t, n, "nothing is recorded before the signature passes")
}

func TestChargeSuccessAndReplay(t *testing.T) {
	r, db, o := setup(t)
	body := successBody(o)
	sig := paystack.Sign(body, secret)

	w := post(r, body, sig)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true,"duplicate":false}`, w.Body.String())

	w = post(r, body, sig)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"duplicate":true}`, w.Body.String())

	var stored orders.Order
	require.NoError(t, db.First(&stored, "id = ?", o.ID).Error)
	assert.Equal(t, orders.StatusPaid, stored.PaymentStatus)

	var notes int64
	require.NoError(t, db.Model(&notifications.Notification{}).Count(&notes).Error)
	assert.Equal(t, int64(1), notes)

	var sc shops.ShopCustomer
	require.NoError(t, db.First(&sc).Error)
	assert.Equal(t, int64(150075), sc.TotalSpentCents)
	assert.Equal(t, 1, sc.OrderCount)
}

func TestUnknownEventIsAcknowledged(t *testing.T) {
	r, _, _ := setup(t)
	body := []byte(`{"event":"transfer.success","data":{"id":1}}`)

	w := post(r, body, paystack.Sign(body, secret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
}

func TestMalformedEvent(t *testing.T) {
	r, _, _ := setup(t)
	body := []byte(`{"event":`)

	w := post(r, body, paystack.Sign(body, secret))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownOrderIsAcknowledged(t *testing.T) {
	r, db, _ := setup(t)
	body := []byte(`{"event":"charge.success","data":{"id":77,"status":"success","reference":"APM-ffffffff-1","amount":100,"currency":"ZAR"}}`)

	w := post(r, body, paystack.Sign(body, secret))
	assert.Equal(t, http.StatusOK, w.Code)

	var ev webhooks.Event
	require.NoError(t, db.First(&ev).Error)
	assert.Equal(t, "order not found", ev.ProcessingError)
}

func TestRefundWithStringAmount(t *testing.T) {
	r, db, o := setup(t)
	body := successBody(o)
	require.Equal(t, http.StatusOK, post(r, body, paystack.Sign(body, secret)).Code)

	refund := []byte(fmt.Sprintf(`{"event":"refund.processed","data":{"id":3018284,"status":"processed","transaction_reference":%q,"amount":"50075","currency":"ZAR"}}`, *o.PaymentReference))
	w := post(r, refund, paystack.Sign(refund, secret))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true,"duplicate":false}`, w.Body.String())

	var stored orders.Order
	require.NoError(t, db.First(&stored, "id = ?", o.ID).Error)
	assert.Equal(t, orders.StatusRefunded, stored.PaymentStatus)

	var sc shops.ShopCustomer
	require.NoError(t, db.First(&sc).Error)
	assert.Equal(t, int64(100000), sc.TotalSpentCents)
}

func TestRejectsOversizedBody(t *testing.T) {
	r, _, _ := setup(t)
	body := bytes.Repeat([]byte("a"), maxBodyBytes+1)

	assert.Equal(t, http.StatusRequestEntityTooLarge, post(r, body, paystack.Sign(body, secret)).Code)
}
