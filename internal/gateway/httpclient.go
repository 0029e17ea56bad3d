package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"paygate/internal/config"
	"paygate/internal/model"
)

const defaultTimeout = 10 * time.Second

// HTTPGateway implements PaymentGateway against the provider's REST API.
// It is safe for concurrent use by multiple goroutines.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway creates a provider client. Outbound requests are traced
// via an otelhttp transport.
func NewHTTPGateway(cfg config.GatewayConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

var _ PaymentGateway = (*HTTPGateway)(nil)

// authorizeRequest is the outbound wire shape: amounts cross the boundary
// as decimal strings, the provider's convention.
type authorizeRequest struct {
	Reference  string `json:"reference"`
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type transactionRequest struct {
	TrxID    string `json:"trx_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Authorize places an authorization hold for the payment's amount.
func (g *HTTPGateway) Authorize(ctx context.Context, p *model.Payment) (*Outcome, error) {
	req := authorizeRequest{
		Reference:  p.Reference,
		CustomerID: p.CustomerID,
		Amount:     p.Amount.Decimal(),
		Currency:   p.Amount.Currency(),
	}
	return g.call(ctx, "/v1/authorize", req, providerStatusAuthorized)
}

// Capture settles a previously authorized transaction.
func (g *HTTPGateway) Capture(ctx context.Context, providerTrxID string, amount model.Money) (*Outcome, error) {
	req := transactionRequest{
		TrxID:    providerTrxID,
		Amount:   amount.Decimal(),
		Currency: amount.Currency(),
	}
	return g.call(ctx, "/v1/capture", req, providerStatusSettled)
}

// Refund returns a captured amount to the customer.
func (g *HTTPGateway) Refund(ctx context.Context, providerTrxID string, amount model.Money) (*Outcome, error) {
	req := transactionRequest{
		TrxID:    providerTrxID,
		Amount:   amount.Decimal(),
		Currency: amount.Currency(),
	}
	return g.call(ctx, "/v1/refund", req, providerStatusRefunded)
}

// call POSTs a JSON body and translates the provider's response into an
// Outcome. wantStatus is the provider code meaning "approved" for this
// operation.
func (g *HTTPGateway) call(ctx context.Context, path string, body any, wantStatus string) (*Outcome, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// Read a bounded slice of the body for the error message; provider
		// error bodies are not a stable contract.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, snippet)
	}

	var tx providerTransaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch tx.Status {
	case wantStatus:
		return &Outcome{ProviderTrxID: tx.TrxID, Approved: true}, nil
	case providerStatusDeclined:
		return &Outcome{ProviderTrxID: tx.TrxID, Approved: false, Reason: tx.Reason}, nil
	default:
		return nil, fmt.Errorf("unexpected provider status %q", tx.Status)
	}
}
