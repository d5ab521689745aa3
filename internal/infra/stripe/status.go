package stripe

import (
	"strings"

	"partsmarket/internal/domain/payments"

	stripe "github.com/stripe/stripe-go/v75"
)

// normalizeSessionStatus maps a Checkout Session onto the provider-neutral
// transaction states used by verification.
func normalizeSessionStatus(s *stripe.CheckoutSession) string {
	if s == nil {
		return payments.TxPending
	}
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return payments.TxSuccess
	}
	switch s.Status {
	case stripe.CheckoutSessionStatusExpired:
		return payments.TxAbandoned
	case stripe.CheckoutSessionStatusComplete:
		// completed but unpaid: an async method is still settling
		return payments.TxPending
	}
	return payments.TxPending
}

func upperCurrency(c stripe.Currency) string {
	return strings.ToUpper(string(c))
}

func transactionID(s *stripe.CheckoutSession) string {
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		return s.PaymentIntent.ID
	}
	return s.ID
}
