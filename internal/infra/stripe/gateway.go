package stripe

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"partsmarket/internal/domain/payments"

	stripe "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// Gateway creates hosted Checkout Sessions in payment mode.
type Gateway struct {
	api    *client.API
	appURL string
}

func New(secretKey, appURL string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{api: api, appURL: strings.TrimRight(appURL, "/")}
}

func (g *Gateway) Name() string { return payments.ProviderStripe }

func (g *Gateway) Initialize(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	successURL := req.CallbackURL
	if successURL == "" {
		successURL = g.appURL + "/orders/payment-complete?reference=" + url.QueryEscape(req.Reference)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(g.appURL + "/orders?canceled=1"),
		CustomerEmail:     stripe.String(req.Email),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Order " + req.Reference),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: withReference(req.Metadata, req.Reference),
		},
	}
	params.Context = ctx
	for k, v := range withReference(req.Metadata, req.Reference) {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return payments.CheckoutSession{}, providerError(err)
	}

	return payments.CheckoutSession{
		AuthorizationURL: s.URL,
		AccessCode:       s.ID,
		Reference:        req.Reference,
	}, nil
}

func (g *Gateway) Verify(ctx context.Context, l payments.Lookup) (payments.Transaction, error) {
	if l.AccessCode == "" {
		return payments.Transaction{}, &payments.ErrProvider{
			Provider: payments.ProviderStripe,
			Message:  "no checkout session recorded for reference " + l.Reference,
		}
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := g.api.CheckoutSessions.Get(l.AccessCode, params)
	if err != nil {
		return payments.Transaction{}, providerError(err)
	}

	return payments.Transaction{
		ID:          transactionID(s),
		Reference:   s.ClientReferenceID,
		Status:      normalizeSessionStatus(s),
		AmountCents: s.AmountTotal,
		Currency:    upperCurrency(s.Currency),
		Channel:     "stripe_checkout",
		Metadata:    s.Metadata,
	}, nil
}

func withReference(md map[string]string, reference string) map[string]string {
	out := make(map[string]string, len(md)+1)
	for k, v := range md {
		out[k] = v
	}
	out["reference"] = reference
	return out
}

func providerError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &payments.ErrProvider{
			Provider:   payments.ProviderStripe,
			StatusCode: se.HTTPStatusCode,
			Message:    se.Msg,
		}
	}
	return err
}
