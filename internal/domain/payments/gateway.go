package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	ProviderPaystack = "paystack"
	ProviderStripe   = "stripe"
)

// Provider-reported transaction states, normalised across gateways.
const (
	TxSuccess   = "success"
	TxFailed    = "failed"
	TxAbandoned = "abandoned"
	TxPending   = "pending"
	TxReversed  = "reversed"
)

// ErrProvider wraps a rejection returned by a payment gateway. Message holds
// the provider's own wording so it can be relayed to the caller verbatim.
type ErrProvider struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func IsProviderError(err error) (*ErrProvider, bool) {
	var pe *ErrProvider
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type CheckoutRequest struct {
	Reference   string
	AmountCents int64
	Currency    string
	Email       string
	CallbackURL string
	Metadata    map[string]string
}

type CheckoutSession struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type Card struct {
	CardType string `json:"card_type,omitempty"`
	Last4    string `json:"last4,omitempty"`
	Bank     string `json:"bank,omitempty"`
	ExpMonth string `json:"exp_month,omitempty"`
	ExpYear  string `json:"exp_year,omitempty"`
}

type Transaction struct {
	ID          string
	Reference   string
	Status      string
	AmountCents int64
	Currency    string
	Channel     string
	PaidAt      *time.Time
	Card        Card
	Metadata    map[string]string
}

// Lookup identifies a checkout with the gateway. Paystack only needs the
// reference; Stripe needs the session id stored as the access code.
type Lookup struct {
	Reference  string
	AccessCode string
}

type Gateway interface {
	Name() string
	Initialize(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	Verify(ctx context.Context, l Lookup) (Transaction, error)
}
