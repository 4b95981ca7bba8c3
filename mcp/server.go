package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	checkout "github.com/unified-commerce/checkout/go"
	checkouthttp "github.com/unified-commerce/checkout/go/http"
)

// ============================================================================
// Protocol Gateway
// ============================================================================

// Gateway serves the checkout tool catalog over the MCP streamable HTTP
// transport and translates each tool invocation into one Resource API call
// against the configured upstream.
//
// The gateway is a stateless proxy step: it performs no retries and keeps no
// business state. The only thing it remembers between calls is the session
// table used for protocol bookkeeping.
type Gateway struct {
	upstream *checkouthttp.CheckoutClient
	profiles map[string]bool
	logger   *zap.Logger
	server   *mcpsdk.Server
	sessions *SessionTable
}

// GatewayConfig configures the protocol gateway.
type GatewayConfig struct {
	// UpstreamURL is the base URL of the Resource API the gateway
	// translates tool calls into.
	UpstreamURL string

	// HTTPClient is the HTTP client used for upstream calls (optional)
	HTTPClient *http.Client

	// UpstreamTimeout bounds each upstream call (optional, defaults to
	// 30s); ignored when HTTPClient is supplied
	UpstreamTimeout time.Duration

	// Profiles lists the recognized resource-semantics profile tags
	// (optional, defaults to ProfileCheckoutV1)
	Profiles []string

	// Logger for gateway activity (optional)
	Logger *zap.Logger
}

// NewGateway creates a gateway translating tool calls to the Resource API at
// config.UpstreamURL.
func NewGateway(config GatewayConfig) *Gateway {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	profiles := config.Profiles
	if len(profiles) == 0 {
		profiles = []string{ProfileCheckoutV1}
	}
	recognized := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		recognized[p] = true
	}

	g := &Gateway{
		upstream: checkouthttp.NewCheckoutClient(&checkouthttp.ClientConfig{
			BaseURL:    config.UpstreamURL,
			HTTPClient: config.HTTPClient,
			Timeout:    config.UpstreamTimeout,
		}),
		profiles: recognized,
		logger:   logger,
		sessions: NewSessionTable(),
	}

	g.server = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "checkout-gateway",
		Version: "1.0.0",
	}, nil)
	g.registerTools()

	return g
}

// Server returns the underlying MCP server, for transports other than the
// streamable HTTP handler.
func (g *Gateway) Server() *mcpsdk.Server {
	return g.server
}

// Sessions returns the gateway's session table.
func (g *Gateway) Sessions() *SessionTable {
	return g.sessions
}

// Handler returns the HTTP handler serving the tool-invocation endpoint:
// the SDK's streamable transport (initialize handshake, session header,
// protocol-version negotiation) wrapped with session bookkeeping.
func (g *Gateway) Handler() http.Handler {
	streamable := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return g.server
	}, nil)
	return g.sessions.Middleware(streamable)
}

func (g *Gateway) registerTools() {
	g.server.AddTool(&mcpsdk.Tool{
		Name:        ToolCreateCheckout,
		Description: "Create a checkout from a list of line items.",
		InputSchema: inputSchemaDocument(ToolCreateCheckout),
	}, g.handleCreateCheckout)

	g.server.AddTool(&mcpsdk.Tool{
		Name:        ToolGetCheckout,
		Description: "Read a checkout by id.",
		InputSchema: inputSchemaDocument(ToolGetCheckout),
	}, g.handleGetCheckout)

	g.server.AddTool(&mcpsdk.Tool{
		Name:        ToolUpdateCheckout,
		Description: "Replace the line items of a checkout. A no-op once the checkout is completed or canceled.",
		InputSchema: inputSchemaDocument(ToolUpdateCheckout),
	}, g.handleUpdateCheckout)

	g.server.AddTool(&mcpsdk.Tool{
		Name:        ToolCompleteCheckout,
		Description: "Complete a checkout. Safe to call twice; returns the already-completed checkout.",
		InputSchema: inputSchemaDocument(ToolCompleteCheckout),
	}, g.handleCompleteCheckout)

	g.server.AddTool(&mcpsdk.Tool{
		Name:        ToolCancelCheckout,
		Description: "Cancel a checkout. Safe to call twice; returns the already-canceled checkout.",
		InputSchema: inputSchemaDocument(ToolCancelCheckout),
	}, g.handleCancelCheckout)
}

// ============================================================================
// Tool handlers
// ============================================================================

func (g *Gateway) handleCreateCheckout(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args CreateCheckoutArgs
	if res := g.decodeCall(req, &args); res != nil {
		return res, nil
	}

	created, err := g.upstream.Create(ctx, DecodeToolLines(args.LineItems))
	if err != nil {
		return g.upstreamErrorResult(ToolCreateCheckout, err)
	}

	g.logger.Info("tool call translated",
		zap.String("tool", ToolCreateCheckout),
		zap.String("checkout_id", created.ID))
	return checkoutResult(created)
}

func (g *Gateway) handleGetCheckout(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args CheckoutIDArgs
	if res := g.decodeCall(req, &args); res != nil {
		return res, nil
	}

	got, err := g.upstream.Get(ctx, args.ID)
	if err != nil {
		return g.upstreamErrorResult(ToolGetCheckout, err)
	}
	return checkoutResult(got)
}

func (g *Gateway) handleUpdateCheckout(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args UpdateCheckoutArgs
	if res := g.decodeCall(req, &args); res != nil {
		return res, nil
	}

	updated, err := g.upstream.Update(ctx, args.ID, DecodeToolLines(args.LineItems))
	if err != nil {
		return g.upstreamErrorResult(ToolUpdateCheckout, err)
	}
	return checkoutResult(updated)
}

func (g *Gateway) handleCompleteCheckout(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args CheckoutIDArgs
	if res := g.decodeCall(req, &args); res != nil {
		return res, nil
	}

	completed, err := g.upstream.Complete(ctx, args.ID)
	if err != nil {
		return g.upstreamErrorResult(ToolCompleteCheckout, err)
	}

	g.logger.Info("tool call translated",
		zap.String("tool", ToolCompleteCheckout),
		zap.String("checkout_id", completed.ID))
	return checkoutResult(completed)
}

func (g *Gateway) handleCancelCheckout(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args CheckoutIDArgs
	if res := g.decodeCall(req, &args); res != nil {
		return res, nil
	}

	canceled, err := g.upstream.Cancel(ctx, args.ID)
	if err != nil {
		return g.upstreamErrorResult(ToolCancelCheckout, err)
	}
	return checkoutResult(canceled)
}

// ============================================================================
// Call decoding and result shaping
// ============================================================================

// decodeCall runs the pre-upstream checks shared by every tool: the profile
// tag must be recognized and the arguments must pass the tool's input
// schema. A non-nil result short-circuits the handler without any upstream
// request being made.
func (g *Gateway) decodeCall(req *mcpsdk.CallToolRequest, args interface{}) *mcpsdk.CallToolResult {
	if err := g.checkProfile(req); err != nil {
		return errorResult(err)
	}

	raw := rawArguments(req)
	if err := validateArguments(req.Params.Name, raw); err != nil {
		return errorResult(asCheckoutError(err))
	}
	if err := json.Unmarshal(raw, args); err != nil {
		return errorResult(checkout.NewError(
			checkout.ErrCodeInvalidInput,
			"arguments are not a valid JSON object: "+err.Error(),
			nil,
		))
	}
	return nil
}

// checkProfile validates the resource-semantics profile tag carried in the
// call's _meta field.
func (g *Gateway) checkProfile(req *mcpsdk.CallToolRequest) *checkout.Error {
	profile := ""
	if req.Params.Meta != nil {
		if v, ok := req.Params.Meta.GetMeta()[ProfileMetaKey].(string); ok {
			profile = v
		}
	}
	if !g.profiles[profile] {
		return checkout.NewError(
			checkout.ErrCodeUnsupportedProfile,
			fmt.Sprintf("profile %q is not recognized by this gateway", profile),
			map[string]interface{}{"profile": profile},
		)
	}
	return nil
}

// asCheckoutError normalizes any error into the checkout taxonomy.
func asCheckoutError(err error) *checkout.Error {
	var ce *checkout.Error
	if errors.As(err, &ce) {
		return ce
	}
	return checkout.NewError(checkout.ErrCodeInvalidInput, err.Error(), nil)
}

func rawArguments(req *mcpsdk.CallToolRequest) json.RawMessage {
	if len(req.Params.Arguments) == 0 {
		return json.RawMessage("{}")
	}
	return req.Params.Arguments
}

// upstreamErrorResult converts a Resource API failure into a tool error.
// The gateway never swallows an upstream failure: errors the API classified
// itself (invalid_input, not_found) pass through with their original code,
// and everything else surfaces as upstream_failure carrying whatever status
// and body text were received.
func (g *Gateway) upstreamErrorResult(tool string, err error) (*mcpsdk.CallToolResult, error) {
	var ce *checkout.Error
	if !errors.As(err, &ce) {
		ce = checkout.NewError(
			checkout.ErrCodeUpstreamFailure,
			"resource API is unreachable: "+err.Error(),
			nil,
		)
	}

	g.logger.Warn("tool call failed upstream",
		zap.String("tool", tool),
		zap.String("code", ce.Code),
		zap.String("message", ce.Message))
	return errorResult(ce), nil
}

// checkoutResult shapes a successful translation: the tool-wire checkout as
// structured content, with the same document serialized as text.
func checkoutResult(c checkout.Checkout) (*mcpsdk.CallToolResult, error) {
	encoded, err := json.Marshal(EncodeToolCheckout(c))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout: %w", err)
	}

	var structured map[string]interface{}
	if err := json.Unmarshal(encoded, &structured); err != nil {
		return nil, fmt.Errorf("failed to build structured content: %w", err)
	}

	return &mcpsdk.CallToolResult{
		StructuredContent: structured,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(encoded)},
		},
	}, nil
}

// errorResult shapes a tool error carrying the checkout error taxonomy.
func errorResult(err *checkout.Error) *mcpsdk.CallToolResult {
	encoded, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		encoded = []byte(fmt.Sprintf(`{"code":%q,"message":%q}`, err.Code, err.Message))
	}

	var structured map[string]interface{}
	if unmarshalErr := json.Unmarshal(encoded, &structured); unmarshalErr != nil {
		structured = map[string]interface{}{"code": err.Code, "message": err.Message}
	}

	return &mcpsdk.CallToolResult{
		IsError:           true,
		StructuredContent: structured,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(encoded)},
		},
	}
}
