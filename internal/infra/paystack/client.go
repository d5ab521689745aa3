package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"partsmarket/internal/domain/payments"

	"golang.org/x/oauth2"
)

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Paystack REST client that authenticates every request with
// the secret key as a bearer token.
func New(secretKey, baseURL string, timeout time.Duration) *Client {
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: secretKey,
		TokenType:   "Bearer",
	}))
	hc.Timeout = timeout

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

func (c *Client) Name() string { return payments.ProviderPaystack }

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeBody struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (c *Client) Initialize(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	body := initializeBody{
		Email:       req.Email,
		Amount:      req.AmountCents,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return payments.CheckoutSession{}, err
	}

	return payments.CheckoutSession{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *Client) Verify(ctx context.Context, l payments.Lookup) (payments.Transaction, error) {
	var data TransactionData
	path := "/transaction/verify/" + url.PathEscape(l.Reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return payments.Transaction{}, err
	}
	return data.Transaction(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack %s %s: read body: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &payments.ErrProvider{
			Provider:   payments.ProviderPaystack,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode),
		}
	}
	if resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &payments.ErrProvider{
			Provider:   payments.ProviderPaystack,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("paystack %s %s: decode data: %w", method, path, err)
	}
	return nil
}
