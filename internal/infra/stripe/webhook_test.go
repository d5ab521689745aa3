package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsmarket/internal/domain/payments"
)

const testSecret = "whsec_test"

func signedHeader(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventJSON(typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2023-08-16","type":%q,"data":{"object":%s}}`, typ, object))
}

func TestParseEventCheckoutCompleted(t *testing.T) {
	payload := eventJSON("checkout.session.completed", `{
		"id":"cs_test_1","object":"checkout.session","payment_status":"paid","status":"complete",
		"client_reference_id":"APM-1a2b3c4d-1","amount_total":150075,"currency":"zar",
		"payment_intent":"pi_123","metadata":{"order_id":"order-1"}}`)

	ev, known, err := ParseEvent(payload, signedHeader(payload, testSecret), testSecret)
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, payments.EventChargeSuccess, ev.Kind)
	assert.Equal(t, "order-1", ev.OrderID)
	assert.Equal(t, "APM-1a2b3c4d-1", ev.Reference)
	assert.Equal(t, "pi_123", ev.TransactionID)
	assert.Equal(t, "charge.success:pi_123", ev.EventID)
	assert.Equal(t, int64(150075), ev.AmountCents)
	assert.Equal(t, "ZAR", ev.Currency)
}

func TestParseEventCompletedButUnpaidIsIgnored(t *testing.T) {
	payload := eventJSON("checkout.session.completed", `{"id":"cs_test_2","object":"checkout.session","payment_status":"unpaid","status":"complete"}`)

	_, known, err := ParseEvent(payload, signedHeader(payload, testSecret), testSecret)
	require.NoError(t, err)
	assert.False(t, known)
}

func TestParseEventExpiredIsFailure(t *testing.T) {
	payload := eventJSON("checkout.session.expired", `{"id":"cs_test_3","object":"checkout.session","payment_status":"unpaid","status":"expired","client_reference_id":"APM-x-1"}`)

	ev, known, err := ParseEvent(payload, signedHeader(payload, testSecret), testSecret)
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, payments.EventChargeFailed, ev.Kind)
	assert.Equal(t, "cs_test_3", ev.TransactionID)
}

func TestParseEventChargeRefunded(t *testing.T) {
	payload := eventJSON("charge.refunded", `{"id":"ch_1","object":"charge","amount_refunded":5000,"currency":"zar","payment_intent":"pi_123","metadata":{"order_id":"order-1","reference":"APM-x-1"}}`)

	ev, known, err := ParseEvent(payload, signedHeader(payload, testSecret), testSecret)
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, payments.EventRefund, ev.Kind)
	assert.Equal(t, "refund:pi_123", ev.EventID)
	assert.Equal(t, int64(5000), ev.AmountCents)
}

func TestParseEventBadSignature(t *testing.T) {
	payload := eventJSON("checkout.session.completed", `{"id":"cs_test_1"}`)

	_, _, err := ParseEvent(payload, signedHeader(payload, "whsec_other"), testSecret)
	assert.ErrorIs(t, err, ErrSignature)

	_, _, err = ParseEvent(payload, "", testSecret)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestParseEventUnknownType(t *testing.T) {
	payload := eventJSON("customer.created", `{"id":"cus_1","object":"customer"}`)

	_, known, err := ParseEvent(payload, signedHeader(payload, testSecret), testSecret)
	require.NoError(t, err)
	assert.False(t, known)
}
