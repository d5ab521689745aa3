package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

type Resend struct {
	url  string
	from string
	http *http.Client
}

func NewResend(apiKey, url, from string, timeout time.Duration) *Resend {
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}))
	hc.Timeout = timeout
	return &Resend{url: url, from: from, http: hc}
}

func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	raw, err := json.Marshal(map[string]any{
		"from":    r.from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode >= 300 {
		if out.Message == "" {
			out.Message = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("%w: resend HTTP %d: %s", ErrSend, resp.StatusCode, out.Message)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: resend returned no message id", ErrSend)
	}
	return out.ID, nil
}
