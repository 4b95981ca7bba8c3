package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	checkout "github.com/unified-commerce/checkout/go"
	checkouthttp "github.com/unified-commerce/checkout/go/http"
)

// ============================================================================
// Binding-selecting client
// ============================================================================

// BindingClient drives a checkout through whichever binding is reachable.
// Every operation first attempts the tool-invocation path through the
// gateway (establishing a session lazily, one per logical conversation) and
// falls back to the direct Resource API on any failure classified by
// ShouldFallBack. The fallback is silent: callers observe an internal
// Checkout either way.
type BindingClient struct {
	gatewayURL string
	profile    string
	timeout    time.Duration
	httpClient *http.Client
	direct     *checkouthttp.CheckoutClient
	logger     *zap.Logger

	mu      sync.Mutex
	client  *mcpsdk.Client
	session *mcpsdk.ClientSession
}

// BindingClientConfig configures the binding-selecting client.
type BindingClientConfig struct {
	// GatewayURL is the streamable tool-invocation endpoint of the
	// gateway, e.g. "http://localhost:8090/mcp". Empty means the gateway
	// path is never attempted.
	GatewayURL string

	// DirectURL is the base URL of the Resource API used as the fallback
	// path.
	DirectURL string

	// HTTPClient used for both bindings (optional)
	HTTPClient *http.Client

	// Timeout bounds each gateway attempt, handshake included (optional,
	// defaults to 10s). A hung handshake or tool call is treated as
	// gateway failure and triggers the fallback.
	Timeout time.Duration

	// Profile is the resource-semantics profile tag attached to every
	// tool call (optional, defaults to ProfileCheckoutV1)
	Profile string

	// Logger for fallback decisions (optional)
	Logger *zap.Logger
}

// NewBindingClient creates a binding-selecting client.
func NewBindingClient(config *BindingClientConfig) *BindingClient {
	if config == nil {
		config = &BindingClientConfig{}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	profile := config.Profile
	if profile == "" {
		profile = ProfileCheckoutV1
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BindingClient{
		gatewayURL: config.GatewayURL,
		profile:    profile,
		timeout:    timeout,
		httpClient: config.HTTPClient,
		direct: checkouthttp.NewCheckoutClient(&checkouthttp.ClientConfig{
			BaseURL:    config.DirectURL,
			HTTPClient: config.HTTPClient,
		}),
		logger: logger,
	}
}

// CreateCheckout creates a checkout from a line list.
func (c *BindingClient) CreateCheckout(ctx context.Context, lines []checkout.CartLine) (checkout.Checkout, error) {
	got, err := c.viaGateway(ctx, ToolCreateCheckout, CreateCheckoutArgs{LineItems: EncodeToolLines(lines)})
	if err == nil {
		return got, nil
	}
	if !ShouldFallBack(err) {
		return checkout.Checkout{}, err
	}
	c.logFallback(ToolCreateCheckout, err)
	return c.direct.Create(ctx, lines)
}

// GetCheckout reads a checkout by id.
func (c *BindingClient) GetCheckout(ctx context.Context, id string) (checkout.Checkout, error) {
	got, err := c.viaGateway(ctx, ToolGetCheckout, CheckoutIDArgs{ID: id})
	if err == nil {
		return got, nil
	}
	if !ShouldFallBack(err) {
		return checkout.Checkout{}, err
	}
	c.logFallback(ToolGetCheckout, err)
	return c.direct.Get(ctx, id)
}

// UpdateCheckout replaces a checkout's line list.
func (c *BindingClient) UpdateCheckout(ctx context.Context, id string, lines []checkout.CartLine) (checkout.Checkout, error) {
	got, err := c.viaGateway(ctx, ToolUpdateCheckout, UpdateCheckoutArgs{ID: id, LineItems: EncodeToolLines(lines)})
	if err == nil {
		return got, nil
	}
	if !ShouldFallBack(err) {
		return checkout.Checkout{}, err
	}
	c.logFallback(ToolUpdateCheckout, err)
	return c.direct.Update(ctx, id, lines)
}

// CompleteCheckout completes a checkout.
func (c *BindingClient) CompleteCheckout(ctx context.Context, id string) (checkout.Checkout, error) {
	got, err := c.viaGateway(ctx, ToolCompleteCheckout, CheckoutIDArgs{ID: id})
	if err == nil {
		return got, nil
	}
	if !ShouldFallBack(err) {
		return checkout.Checkout{}, err
	}
	c.logFallback(ToolCompleteCheckout, err)
	return c.direct.Complete(ctx, id)
}

// CancelCheckout cancels a checkout.
func (c *BindingClient) CancelCheckout(ctx context.Context, id string) (checkout.Checkout, error) {
	got, err := c.viaGateway(ctx, ToolCancelCheckout, CheckoutIDArgs{ID: id})
	if err == nil {
		return got, nil
	}
	if !ShouldFallBack(err) {
		return checkout.Checkout{}, err
	}
	c.logFallback(ToolCancelCheckout, err)
	return c.direct.Cancel(ctx, id)
}

// NegotiatedVersion returns the protocol version agreed at the initialize
// handshake, or "" when no session is established.
func (c *BindingClient) NegotiatedVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	if res := c.session.InitializeResult(); res != nil {
		return res.ProtocolVersion
	}
	return ""
}

// Close tears down the gateway session, if any. The client remains usable;
// a new session is established on the next gateway attempt.
func (c *BindingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

// ShouldFallBack is the fallback decision boundary: it classifies an error
// from the gateway path as worth retrying against the direct Resource API.
//
// Everything falls back (handshake failures, transport errors, tool errors,
// malformed responses) with one exception: a canceled caller context means
// the caller gave up, not that the gateway failed, and the direct path would
// be wasted work.
func ShouldFallBack(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// ============================================================================
// Gateway path
// ============================================================================

// viaGateway performs one tool call through the gateway. Every failure is
// classified into the checkout error taxonomy so that ShouldFallBack (and
// callers inspecting codes) see a uniform surface.
func (c *BindingClient) viaGateway(ctx context.Context, tool string, args interface{}) (checkout.Checkout, error) {
	if c.gatewayURL == "" {
		return checkout.Checkout{}, checkout.NewError(
			checkout.ErrCodeGatewayUnreachable, "no gateway endpoint configured", nil)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.ensureSession(attemptCtx)
	if err != nil {
		return checkout.Checkout{}, c.classify(ctx, checkout.ErrCodeHandshakeFailed, "initialize handshake failed", err)
	}

	result, err := session.CallTool(attemptCtx, &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
		Meta:      mcpsdk.Meta{ProfileMetaKey: c.profile},
	})
	if err != nil {
		// The session may be dead; drop it so the next attempt
		// re-establishes the logical conversation.
		c.dropSession()
		return checkout.Checkout{}, c.classify(ctx, checkout.ErrCodeGatewayUnreachable, "tool call failed", err)
	}

	return decodeToolResult(result)
}

// ensureSession returns the current gateway session, dialing and performing
// the initialize handshake when none exists.
func (c *BindingClient) ensureSession(ctx context.Context) (*mcpsdk.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	if c.client == nil {
		c.client = mcpsdk.NewClient(&mcpsdk.Implementation{
			Name:    "checkout-binding-client",
			Version: "1.0.0",
		}, nil)
	}

	transport := &mcpsdk.StreamableClientTransport{
		Endpoint:   c.gatewayURL,
		HTTPClient: c.httpClient,
	}
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}

	c.session = session
	return session, nil
}

func (c *BindingClient) dropSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
}

// classify wraps a gateway-path failure into the error taxonomy. When the
// caller's own context was canceled, that cancellation is surfaced instead
// so ShouldFallBack does not retry on behalf of a caller that gave up.
func (c *BindingClient) classify(parent context.Context, code, prefix string, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", prefix, context.Canceled)
	}
	var ce *checkout.Error
	if errors.As(err, &ce) {
		return ce
	}
	return checkout.NewError(code, prefix+": "+err.Error(), nil)
}

func (c *BindingClient) logFallback(tool string, err error) {
	c.logger.Debug("gateway binding failed, using direct resource API",
		zap.String("tool", tool),
		zap.Error(err))
}

// ============================================================================
// Response reconciliation
// ============================================================================

// decodeToolResult normalizes a tool-invocation envelope into the internal
// Checkout shape. Tool errors come back as checkout errors; a response that
// fits neither the success nor the error shape is classified as an upstream
// failure so the fallback path can take over.
func decodeToolResult(result *mcpsdk.CallToolResult) (checkout.Checkout, error) {
	if result.IsError {
		return checkout.Checkout{}, decodeToolError(result)
	}

	var tc ToolCheckout
	if structured, ok := result.StructuredContent.(map[string]interface{}); ok {
		encoded, err := json.Marshal(structured)
		if err == nil {
			_ = json.Unmarshal(encoded, &tc)
		}
	}
	if tc.ID == "" {
		// Fall back to the text content.
		if text := textContent(result); text != "" {
			_ = json.Unmarshal([]byte(text), &tc)
		}
	}
	if tc.ID == "" {
		return checkout.Checkout{}, checkout.NewError(
			checkout.ErrCodeUpstreamFailure,
			"tool result does not contain a checkout",
			nil,
		)
	}

	return DecodeToolCheckout(tc), nil
}

// decodeToolError extracts the checkout error carried by a tool error
// result.
func decodeToolError(result *mcpsdk.CallToolResult) error {
	var ce checkout.Error
	if structured, ok := result.StructuredContent.(map[string]interface{}); ok {
		if encoded, err := json.Marshal(structured); err == nil {
			_ = json.Unmarshal(encoded, &ce)
		}
	}
	if ce.Code == "" {
		if text := textContent(result); text != "" {
			_ = json.Unmarshal([]byte(text), &ce)
		}
	}
	if ce.Code == "" {
		return checkout.NewError(
			checkout.ErrCodeUpstreamFailure,
			"tool call failed: "+textContent(result),
			nil,
		)
	}
	return &ce
}

func textContent(result *mcpsdk.CallToolResult) string {
	for _, item := range result.Content {
		if text, ok := item.(*mcpsdk.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
