package paystack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"partsmarket/internal/domain/payments"
)

const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventRefundProcessed = "refund.processed"
)

var ErrMalformedEvent = errors.New("malformed paystack event")

type rawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// flexString accepts JSON strings and numbers; Paystack is inconsistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexAmount accepts minor-unit amounts sent as JSON numbers or numeric strings.
// refund.processed carries the amount as a string.
type flexAmount int64

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*a = 0
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(s)), 10, 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", string(s), err)
	}
	*a = flexAmount(n)
	return nil
}

// Metadata is what we attached at initialisation. Paystack echoes it back as
// an object, but may send "" or 0 when none was set.
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		*m = Metadata{}
		return nil
	}
	out := make(Metadata, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	*m = out
	return nil
}

type Authorization struct {
	Last4    string     `json:"last4"`
	CardType string     `json:"card_type"`
	Bank     string     `json:"bank"`
	ExpMonth flexString `json:"exp_month"`
	ExpYear  flexString `json:"exp_year"`
	Channel  string     `json:"channel"`
}

type TransactionData struct {
	ID              flexString    `json:"id"`
	Status          string        `json:"status"`
	Reference       string        `json:"reference"`
	Amount          flexAmount    `json:"amount"`
	Currency        string        `json:"currency"`
	Channel         string        `json:"channel"`
	GatewayResponse string        `json:"gateway_response"`
	PaidAt          *time.Time    `json:"paid_at"`
	Metadata        Metadata      `json:"metadata"`
	Authorization   Authorization `json:"authorization"`
}

func (d TransactionData) card() payments.Card {
	return payments.Card{
		CardType: strings.TrimSpace(d.Authorization.CardType),
		Last4:    d.Authorization.Last4,
		Bank:     d.Authorization.Bank,
		ExpMonth: string(d.Authorization.ExpMonth),
		ExpYear:  string(d.Authorization.ExpYear),
	}
}

func (d TransactionData) Transaction() payments.Transaction {
	return payments.Transaction{
		ID:          string(d.ID),
		Reference:   d.Reference,
		Status:      d.Status,
		AmountCents: int64(d.Amount),
		Currency:    d.Currency,
		Channel:     d.Channel,
		PaidAt:      d.PaidAt,
		Card:        d.card(),
		Metadata:    d.Metadata,
	}
}

type RefundData struct {
	ID                   flexString `json:"id"`
	Status               string     `json:"status"`
	TransactionReference string     `json:"transaction_reference"`
	Amount               flexAmount `json:"amount"`
	Currency             string     `json:"currency"`
}

// ParseEvent maps a verified webhook body onto a settlement event. known is
// false for event types this service does not act on.
func ParseEvent(body []byte) (ev payments.Event, known bool, err error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil || raw.Event == "" {
		return payments.Event{}, false, ErrMalformedEvent
	}

	ev = payments.Event{
		Provider: payments.ProviderPaystack,
		Type:     raw.Event,
		Payload:  json.RawMessage(body),
	}

	switch raw.Event {
	case EventChargeSuccess, EventChargeFailed:
		var d TransactionData
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return payments.Event{}, false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev.Kind = payments.EventChargeSuccess
		if raw.Event == EventChargeFailed {
			ev.Kind = payments.EventChargeFailed
		}
		ev.OrderID = d.Metadata["order_id"]
		ev.Reference = d.Reference
		ev.TransactionID = string(d.ID)
		ev.AmountCents = int64(d.Amount)
		ev.Currency = d.Currency
		ev.Channel = d.Channel
		ev.Card = d.card()

	case EventRefundProcessed:
		var d RefundData
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return payments.Event{}, false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev.Kind = payments.EventRefund
		ev.Reference = d.TransactionReference
		ev.TransactionID = string(d.ID)
		if ev.TransactionID == "" {
			ev.TransactionID = d.TransactionReference
		}
		ev.AmountCents = int64(d.Amount)
		ev.Currency = d.Currency

	default:
		return ev, false, nil
	}

	if ev.TransactionID == "" && ev.Reference == "" {
		return payments.Event{}, false, fmt.Errorf("%w: no transaction id or reference", ErrMalformedEvent)
	}
	if ev.TransactionID == "" {
		ev.TransactionID = ev.Reference
	}
	ev.EventID = payments.EventIDFor(ev.Kind, ev.TransactionID)
	return ev, true, nil
}
