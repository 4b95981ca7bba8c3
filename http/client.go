package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	checkout "github.com/unified-commerce/checkout/go"
)

// ============================================================================
// Checkout REST client
// ============================================================================

// CheckoutClient calls the Resource API over HTTP. It is the direct REST
// binding: each method performs exactly one request and decodes the REST
// envelope back into the internal Checkout shape.
type CheckoutClient struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig configures the checkout REST client.
type ClientConfig struct {
	// BaseURL is the base URL of the Resource API, e.g. "http://localhost:8080"
	BaseURL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s); ignored when
	// HTTPClient is supplied
	Timeout time.Duration
}

// NewCheckoutClient creates a new checkout REST client.
func NewCheckoutClient(config *ClientConfig) *CheckoutClient {
	if config == nil {
		config = &ClientConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &CheckoutClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// Create creates a checkout from a line list.
func (c *CheckoutClient) Create(ctx context.Context, lines []checkout.CartLine) (checkout.Checkout, error) {
	body := CreateCheckoutRequest{Lines: EncodeLines(lines)}
	return c.do(ctx, http.MethodPost, "/checkout", body, http.StatusCreated)
}

// Get reads a checkout by id.
func (c *CheckoutClient) Get(ctx context.Context, id string) (checkout.Checkout, error) {
	return c.do(ctx, http.MethodGet, "/checkout/"+id, nil, http.StatusOK)
}

// Update replaces a checkout's line list.
func (c *CheckoutClient) Update(ctx context.Context, id string, lines []checkout.CartLine) (checkout.Checkout, error) {
	body := UpdateCheckoutRequest{Lines: EncodeLines(lines)}
	return c.do(ctx, http.MethodPatch, "/checkout/"+id, body, http.StatusOK)
}

// Complete transitions a checkout to COMPLETED.
func (c *CheckoutClient) Complete(ctx context.Context, id string) (checkout.Checkout, error) {
	return c.do(ctx, http.MethodPost, "/checkout/"+id+"/complete", nil, http.StatusOK)
}

// Cancel transitions a checkout to CANCELED.
func (c *CheckoutClient) Cancel(ctx context.Context, id string) (checkout.Checkout, error) {
	return c.do(ctx, http.MethodPost, "/checkout/"+id+"/cancel", nil, http.StatusOK)
}

// do performs one request and decodes the response envelope.
func (c *CheckoutClient) do(ctx context.Context, method, path string, body interface{}, wantStatus int) (checkout.Checkout, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return checkout.Checkout{}, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return checkout.Checkout{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return checkout.Checkout{}, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return checkout.Checkout{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return checkout.Checkout{}, decodeErrorResponse(resp.StatusCode, responseBody)
	}

	var envelope CheckoutResponse
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return checkout.Checkout{}, fmt.Errorf("failed to decode checkout response (%d): %s", resp.StatusCode, string(responseBody))
	}
	return DecodeCheckout(envelope), nil
}

// decodeErrorResponse surfaces a non-success response. When the body carries
// the Resource API's own error envelope, the original code (invalid_input,
// not_found) is preserved; anything else becomes an upstream_failure carrying
// the status and body text.
func decodeErrorResponse(status int, body []byte) error {
	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != "" {
		return checkout.NewError(envelope.Code, envelope.Message, envelope.Details)
	}
	return checkout.NewError(
		checkout.ErrCodeUpstreamFailure,
		fmt.Sprintf("checkout API returned %d: %s", status, string(body)),
		map[string]interface{}{"status": status, "body": string(body)},
	)
}
