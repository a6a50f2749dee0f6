// Package mercadopago is a thin REST client for the MercadoPago checkout API.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/kumamontessori/kuma/internal/money"
	"github.com/kumamontessori/kuma/internal/observability"
	"github.com/kumamontessori/kuma/internal/payments"
	"github.com/kumamontessori/kuma/internal/retry"
)

const (
	DefaultBaseURL = "https://api.mercadopago.com"
	requestTimeout = 15 * time.Second
	maxErrorBody   = 2048
)

var ErrMissingInitPoint = errors.New("mercadopago did not return an init point")

type Config struct {
	AccessToken string
	BaseURL     string
	Sandbox     bool
	Retry       retry.Config
	// Transport defaults to a sentry-traced http.DefaultTransport.
	Transport http.RoundTripper
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	sandbox    bool
	retry      retry.Config
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, payments.ErrNotConfigured
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base := cfg.Transport
	if base == nil {
		base = observability.WrapRoundTripper(http.DefaultTransport)
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	return &Client{
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: &oauth2.Transport{Source: tokenSource, Base: base},
		},
		baseURL: baseURL,
		sandbox: cfg.Sandbox,
		retry:   cfg.Retry,
	}, nil
}

func (c *Client) Name() string {
	return payments.ProviderMercadoPago
}

type preferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferencePayer struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   *phone `json:"phone,omitempty"`
	Address *addr  `json:"address,omitempty"`
}

type phone struct {
	AreaCode string `json:"area_code"`
	Number   string `json:"number"`
}

type addr struct {
	ZipCode    string `json:"zip_code,omitempty"`
	StreetName string `json:"street_name,omitempty"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceRequest struct {
	Items               []preferenceItem `json:"items"`
	Payer               preferencePayer  `json:"payer"`
	BackURLs            backURLs         `json:"back_urls"`
	AutoReturn          string           `json:"auto_return,omitempty"`
	ExternalReference   string           `json:"external_reference"`
	NotificationURL     string           `json:"notification_url,omitempty"`
	StatementDescriptor string           `json:"statement_descriptor,omitempty"`
	Expires             bool             `json:"expires"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

func newPreferenceRequest(pref payments.Preference) preferenceRequest {
	items := make([]preferenceItem, 0, len(pref.Items))
	for _, item := range pref.Items {
		unit, _ := item.UnitPrice.Float64()
		items = append(items, preferenceItem{
			ID:         item.ID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  unit,
			CurrencyID: money.Currency,
		})
	}

	payer := preferencePayer{Name: pref.Payer.Name, Email: pref.Payer.Email}
	if pref.Payer.Phone != "" {
		payer.Phone = &phone{Number: pref.Payer.Phone}
	}
	if pref.Payer.Address != "" || pref.Payer.PostalCode != "" {
		payer.Address = &addr{ZipCode: pref.Payer.PostalCode, StreetName: pref.Payer.Address}
	}

	req := preferenceRequest{
		Items: items,
		Payer: payer,
		BackURLs: backURLs{
			Success: pref.BackURLs.Success,
			Failure: pref.BackURLs.Failure,
			Pending: pref.BackURLs.Pending,
		},
		ExternalReference:   pref.ExternalReference(),
		NotificationURL:     pref.NotificationURL,
		StatementDescriptor: pref.StatementDescriptor,
	}
	// MercadoPago rejects auto_return unless the success URL is https.
	if strings.HasPrefix(pref.BackURLs.Success, "https://") {
		req.AutoReturn = "approved"
	}
	return req
}

// CreatePreference creates a checkout preference and returns its redirect URL.
func (c *Client) CreatePreference(ctx context.Context, pref payments.Preference) (*payments.PreferenceResult, error) {
	var resp preferenceResponse
	// Retries reuse the order ID as idempotency key so one checkout opens one preference.
	headers := http.Header{idempotencyHeader: []string{pref.ExternalReference()}}
	if err := c.doWithHeaders(ctx, http.MethodPost, "/checkout/preferences", headers, newPreferenceRequest(pref), &resp); err != nil {
		return nil, fmt.Errorf("failed to create preference: %w", err)
	}

	initPoint := resp.InitPoint
	if c.sandbox && resp.SandboxInitPoint != "" {
		initPoint = resp.SandboxInitPoint
	}
	if initPoint == "" {
		return nil, ErrMissingInitPoint
	}
	return &payments.PreferenceResult{ID: resp.ID, InitPoint: initPoint}, nil
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	PaymentMethodID   string      `json:"payment_method_id"`
	TransactionAmount json.Number `json:"transaction_amount"`
}

func (p paymentResponse) toPayment() payments.Payment {
	amount, err := money.Parse(p.TransactionAmount.String())
	if err != nil {
		amount = money.FromCents(0)
	}
	return payments.Payment{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		PaymentMethod:     p.PaymentMethodID,
		Amount:            amount,
	}
}

func (c *Client) GetPayment(ctx context.Context, id string) (*payments.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("payment id is required")
	}

	var resp paymentResponse
	err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, payments.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}
	payment := resp.toPayment()
	return &payment, nil
}

// SearchPayments lists payments whose external_reference matches, newest first.
func (c *Client) SearchPayments(ctx context.Context, externalReference string) ([]payments.Payment, error) {
	query := url.Values{}
	query.Set("external_reference", externalReference)
	query.Set("sort", "date_created")
	query.Set("criteria", "desc")

	var resp struct {
		Results []paymentResponse `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/payments/search?"+query.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to search payments: %w", err)
	}

	out := make([]payments.Payment, 0, len(resp.Results))
	for _, result := range resp.Results {
		out = append(out, result.toPayment())
	}
	return out, nil
}

const idempotencyHeader = "X-Idempotency-Key"

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doWithHeaders(ctx, method, path, nil, body, out)
}

// doWithHeaders sends the same headers on every attempt.
func (c *Client) doWithHeaders(ctx context.Context, method, path string, headers http.Header, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = encoded
	}

	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		for name, values := range headers {
			for _, value := range values {
				req.Header.Add(name, value)
			}
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &retry.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
