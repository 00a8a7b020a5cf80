package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeClient talks to the provider's REST API. Only the three operations
// the reconciliation core needs are implemented.
type StripeClient struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string // e.g. https://api.stripe.com; overridable for tests
	SuccessURL    string
	CancelURL     string
	HTTPClient    *http.Client
}

func NewStripeClient(apiKey, webhookSecret, baseURL, successURL, cancelURL string) *StripeClient {
	return &StripeClient{
		APIKey:        apiKey,
		WebhookSecret: webhookSecret,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

type wireSession struct {
	ID                 string            `json:"id"`
	URL                string            `json:"url"`
	PaymentIntent      string            `json:"payment_intent"`
	PaymentStatus      string            `json:"payment_status"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	AmountTotal        int64             `json:"amount_total"`
	Currency           string            `json:"currency"`
	ExpiresAt          int64             `json:"expires_at"`
	Metadata           map[string]string `json:"metadata"`
}

func (w wireSession) toSession() Session {
	return Session{
		ID:                 w.ID,
		URL:                w.URL,
		PaymentIntent:      w.PaymentIntent,
		PaymentStatus:      w.PaymentStatus,
		PaymentMethodTypes: w.PaymentMethodTypes,
		AmountTotal:        w.AmountTotal,
		Currency:           w.Currency,
		ExpiresAt:          time.Unix(w.ExpiresAt, 0).UTC(),
		Metadata:           w.Metadata,
	}
}

func (c *StripeClient) CreateSession(ctx context.Context, orderID string, amountCents int64, currency string) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][product_data][name]", "Order #"+orderID)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[order_id]", orderID)

	var ws wireSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &ws); err != nil {
		return nil, err
	}
	s := ws.toSession()
	return &s, nil
}

func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	var ws wireSession
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &ws); err != nil {
		return nil, err
	}
	s := ws.toSession()
	return &s, nil
}

func (c *StripeClient) VerifyWebhook(payload []byte, sigHeader string) (*Event, error) {
	if err := verifySignature(payload, sigHeader, c.WebhookSecret, time.Now()); err != nil {
		return nil, err
	}
	var wire struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object wireSession `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &Event{ID: wire.ID, Type: wire.Type, Session: wire.Data.Object.toSession()}, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(b, &apiErr)
		return fmt.Errorf("%w: %s (%s, http %d)",
			ErrUnavailable, apiErr.Error.Message, apiErr.Error.Type, resp.StatusCode)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
