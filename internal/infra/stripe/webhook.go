package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	"partsmarket/internal/domain/payments"

	stripe "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const SignatureHeader = "Stripe-Signature"

var ErrSignature = errors.New("stripe signature verification failed")

// ParseEvent verifies the Stripe-Signature header and maps the event onto a
// settlement event. known is false for types this service ignores.
func ParseEvent(payload []byte, signature, secret string) (ev payments.Event, known bool, err error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return payments.Event{}, false, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	ev = payments.Event{
		Provider: payments.ProviderStripe,
		Type:     string(event.Type),
		Payload:  json.RawMessage(payload),
	}

	switch string(event.Type) {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return payments.Event{}, false, fmt.Errorf("failed to parse session: %w", err)
		}

		switch normalizeSessionStatus(&s) {
		case payments.TxSuccess:
			ev.Kind = payments.EventChargeSuccess
		case payments.TxAbandoned:
			ev.Kind = payments.EventChargeFailed
		default:
			if string(event.Type) != "checkout.session.async_payment_failed" {
				return ev, false, nil
			}
			ev.Kind = payments.EventChargeFailed
		}

		ev.OrderID = s.Metadata["order_id"]
		ev.Reference = s.ClientReferenceID
		ev.TransactionID = transactionID(&s)
		ev.AmountCents = s.AmountTotal
		ev.Currency = upperCurrency(s.Currency)
		ev.Channel = "stripe_checkout"

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return payments.Event{}, false, fmt.Errorf("failed to parse charge: %w", err)
		}
		ev.Kind = payments.EventRefund
		ev.OrderID = ch.Metadata["order_id"]
		ev.Reference = ch.Metadata["reference"]
		ev.TransactionID = ch.ID
		if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
			ev.TransactionID = ch.PaymentIntent.ID
		}
		ev.AmountCents = ch.AmountRefunded
		ev.Currency = upperCurrency(ch.Currency)
		if ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
			card := ch.PaymentMethodDetails.Card
			ev.Card = payments.Card{
				CardType: string(card.Brand),
				Last4:    card.Last4,
				ExpMonth: fmt.Sprint(card.ExpMonth),
				ExpYear:  fmt.Sprint(card.ExpYear),
			}
		}

	default:
		return ev, false, nil
	}

	ev.EventID = payments.EventIDFor(ev.Kind, ev.TransactionID)
	return ev, true, nil
}
