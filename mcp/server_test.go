package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	checkout "github.com/unified-commerce/checkout/go"
	checkouthttp "github.com/unified-commerce/checkout/go/http"
)

// countingUpstream is a live Resource API plus a request counter, so tests
// can assert that rejected calls never reach it.
type countingUpstream struct {
	server   *httptest.Server
	store    *checkout.MemoryStore
	requests atomic.Int64
}

func newCountingUpstream(t *testing.T) *countingUpstream {
	t.Helper()
	up := &countingUpstream{store: checkout.NewMemoryStore()}
	router := checkouthttp.NewRouter(up.store)
	up.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up.requests.Add(1)
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(up.server.Close)
	return up
}

func newTestGateway(t *testing.T) (*Gateway, *countingUpstream) {
	t.Helper()
	up := newCountingUpstream(t)
	gw := NewGateway(GatewayConfig{UpstreamURL: up.server.URL})
	return gw, up
}

// makeCallToolRequest builds a *mcpsdk.CallToolRequest for testing.
func makeCallToolRequest(t *testing.T, name string, args map[string]interface{}, meta mcpsdk.Meta) *mcpsdk.CallToolRequest {
	t.Helper()
	encoded, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("failed to marshal arguments: %v", err)
	}
	params := &mcpsdk.CallToolParamsRaw{
		Name:      name,
		Arguments: encoded,
		Meta:      meta,
	}
	return &mcpsdk.CallToolRequest{Params: params}
}

func taggedMeta() mcpsdk.Meta {
	return mcpsdk.Meta{ProfileMetaKey: ProfileCheckoutV1}
}

func decodeResultCheckout(t *testing.T, result *mcpsdk.CallToolResult) ToolCheckout {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success result, got error: %+v", result.StructuredContent)
	}
	encoded, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("failed to re-marshal structured content: %v", err)
	}
	var tc ToolCheckout
	if err := json.Unmarshal(encoded, &tc); err != nil {
		t.Fatalf("failed to decode checkout from structured content: %v", err)
	}
	return tc
}

func decodeResultError(t *testing.T, result *mcpsdk.CallToolResult) checkout.Error {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error result, got: %+v", result.StructuredContent)
	}
	encoded, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("failed to re-marshal structured content: %v", err)
	}
	var ce checkout.Error
	if err := json.Unmarshal(encoded, &ce); err != nil {
		t.Fatalf("failed to decode error from structured content: %v", err)
	}
	return ce
}

func lineItemsArg(items ...ToolLineItem) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = map[string]interface{}{
			"item":     map[string]interface{}{"id": it.Item.ID},
			"quantity": it.Quantity,
		}
	}
	return out
}

func TestCreateCheckoutTranslatesToUpstream(t *testing.T) {
	gw, up := newTestGateway(t)

	req := makeCallToolRequest(t, ToolCreateCheckout, map[string]interface{}{
		"line_items": lineItemsArg(
			ToolLineItem{Item: ToolItem{ID: "sku-1"}, Quantity: 2},
			ToolLineItem{Item: ToolItem{ID: "sku-2"}, Quantity: 1},
		),
	}, taggedMeta())

	result, err := gw.handleCreateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tc := decodeResultCheckout(t, result)
	if tc.ID == "" {
		t.Error("expected an assigned checkout id")
	}
	if tc.Status != string(checkout.StatusCreated) {
		t.Errorf("expected status %s, got %s", checkout.StatusCreated, tc.Status)
	}
	if len(tc.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(tc.LineItems))
	}
	if tc.LineItems[0].Item.ID != "sku-1" || tc.LineItems[0].Quantity != 2 {
		t.Errorf("line item 0 round-tripped badly: %+v", tc.LineItems[0])
	}
	if up.requests.Load() != 1 {
		t.Errorf("expected 1 upstream request, got %d", up.requests.Load())
	}
}

func TestSchemaViolationNeverReachesUpstream(t *testing.T) {
	gw, up := newTestGateway(t)

	req := makeCallToolRequest(t, ToolCreateCheckout, map[string]interface{}{
		"line_items": lineItemsArg(ToolLineItem{Item: ToolItem{ID: "sku-1"}, Quantity: 0}),
	}, taggedMeta())

	result, err := gw.handleCreateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ce := decodeResultError(t, result)
	if ce.Code != checkout.ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", checkout.ErrCodeInvalidInput, ce.Code)
	}
	if ce.Details["violations"] == nil {
		t.Error("expected the failed constraints in details")
	}
	if up.requests.Load() != 0 {
		t.Errorf("expected no upstream requests, got %d", up.requests.Load())
	}
}

func TestEmptyLineItemsRejectedBySchema(t *testing.T) {
	gw, up := newTestGateway(t)

	req := makeCallToolRequest(t, ToolCreateCheckout, map[string]interface{}{
		"line_items": []interface{}{},
	}, taggedMeta())

	result, err := gw.handleCreateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ce := decodeResultError(t, result)
	if ce.Code != checkout.ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", checkout.ErrCodeInvalidInput, ce.Code)
	}
	if up.requests.Load() != 0 {
		t.Errorf("expected no upstream requests, got %d", up.requests.Load())
	}
}

func TestMissingProfileTagRejected(t *testing.T) {
	gw, up := newTestGateway(t)

	req := makeCallToolRequest(t, ToolGetCheckout, map[string]interface{}{"id": "any"}, nil)

	result, err := gw.handleGetCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ce := decodeResultError(t, result)
	if ce.Code != checkout.ErrCodeUnsupportedProfile {
		t.Errorf("expected code %s, got %s", checkout.ErrCodeUnsupportedProfile, ce.Code)
	}
	if up.requests.Load() != 0 {
		t.Errorf("expected no upstream requests, got %d", up.requests.Load())
	}
}

func TestUnrecognizedProfileTagRejected(t *testing.T) {
	gw, up := newTestGateway(t)

	req := makeCallToolRequest(t, ToolGetCheckout, map[string]interface{}{"id": "any"},
		mcpsdk.Meta{ProfileMetaKey: "commerce.refunds.v9"})

	result, err := gw.handleGetCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ce := decodeResultError(t, result)
	if ce.Code != checkout.ErrCodeUnsupportedProfile {
		t.Errorf("expected code %s, got %s", checkout.ErrCodeUnsupportedProfile, ce.Code)
	}
	if ce.Details["profile"] != "commerce.refunds.v9" {
		t.Errorf("expected rejected profile in details, got %v", ce.Details["profile"])
	}
	if up.requests.Load() != 0 {
		t.Errorf("expected no upstream requests, got %d", up.requests.Load())
	}
}

func TestNotFoundPassesThroughFromUpstream(t *testing.T) {
	gw, _ := newTestGateway(t)

	req := makeCallToolRequest(t, ToolGetCheckout, map[string]interface{}{"id": "no-such-id"}, taggedMeta())

	result, err := gw.handleGetCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ce := decodeResultError(t, result)
	if ce.Code != checkout.ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", checkout.ErrCodeNotFound, ce.Code)
	}
}

func TestUnreachableUpstreamSurfacesAsUpstreamFailure(t *testing.T) {
	gw := NewGateway(GatewayConfig{UpstreamURL: "http://127.0.0.1:1"})

	req := makeCallToolRequest(t, ToolGetCheckout, map[string]interface{}{"id": "any"}, taggedMeta())

	result, err := gw.handleGetCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ce := decodeResultError(t, result)
	if ce.Code != checkout.ErrCodeUpstreamFailure {
		t.Errorf("expected code %s, got %s", checkout.ErrCodeUpstreamFailure, ce.Code)
	}
}

func TestCompleteThroughGatewayIsIdempotent(t *testing.T) {
	gw, up := newTestGateway(t)

	created, err := up.store.Create([]checkout.CartLine{{ProductID: "sku-1", Quantity: 1}})
	if err != nil {
		t.Fatalf("failed to seed checkout: %v", err)
	}

	req := makeCallToolRequest(t, ToolCompleteCheckout, map[string]interface{}{"id": created.ID}, taggedMeta())

	first, err := gw.handleCompleteCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := gw.handleCompleteCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := decodeResultCheckout(t, first)
	b := decodeResultCheckout(t, second)
	if a.Status != string(checkout.StatusCompleted) || b.Status != string(checkout.StatusCompleted) {
		t.Errorf("expected both results completed, got %s and %s", a.Status, b.Status)
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		t.Errorf("second completion should be a no-op, timestamps differ: %v vs %v", a.UpdatedAt, b.UpdatedAt)
	}
}

func TestUpdateAfterCancelThroughGatewayIsNoOp(t *testing.T) {
	gw, up := newTestGateway(t)

	created, err := up.store.Create([]checkout.CartLine{{ProductID: "sku-1", Quantity: 1}})
	if err != nil {
		t.Fatalf("failed to seed checkout: %v", err)
	}
	if _, err := up.store.Cancel(created.ID); err != nil {
		t.Fatalf("failed to cancel checkout: %v", err)
	}

	req := makeCallToolRequest(t, ToolUpdateCheckout, map[string]interface{}{
		"id":         created.ID,
		"line_items": lineItemsArg(ToolLineItem{Item: ToolItem{ID: "sku-9"}, Quantity: 3}),
	}, taggedMeta())

	result, err := gw.handleUpdateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tc := decodeResultCheckout(t, result)
	if tc.Status != string(checkout.StatusCanceled) {
		t.Errorf("expected status %s, got %s", checkout.StatusCanceled, tc.Status)
	}
	if len(tc.LineItems) != 1 || tc.LineItems[0].Item.ID != "sku-1" {
		t.Errorf("lines of a canceled checkout must not change, got %+v", tc.LineItems)
	}
}

// The two bindings carry different wire shapes but must describe the same
// resource. Create through the tool binding, read through the REST binding,
// and compare the internal values.
func TestBindingsAgreeOnTheSameResource(t *testing.T) {
	gw, up := newTestGateway(t)

	req := makeCallToolRequest(t, ToolCreateCheckout, map[string]interface{}{
		"line_items": lineItemsArg(ToolLineItem{Item: ToolItem{ID: "sku-7"}, Quantity: 4}),
	}, taggedMeta())

	result, err := gw.handleCreateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	viaTool := DecodeToolCheckout(decodeResultCheckout(t, result))

	rest := checkouthttp.NewCheckoutClient(&checkouthttp.ClientConfig{BaseURL: up.server.URL})
	viaREST, err := rest.Get(context.Background(), viaTool.ID)
	if err != nil {
		t.Fatalf("direct read failed: %v", err)
	}

	if viaTool.ID != viaREST.ID || viaTool.Status != viaREST.Status {
		t.Errorf("bindings disagree: %+v vs %+v", viaTool, viaREST)
	}
	if len(viaTool.Lines) != len(viaREST.Lines) {
		t.Fatalf("line counts differ: %d vs %d", len(viaTool.Lines), len(viaREST.Lines))
	}
	for i := range viaTool.Lines {
		if viaTool.Lines[i] != viaREST.Lines[i] {
			t.Errorf("line %d differs: %+v vs %+v", i, viaTool.Lines[i], viaREST.Lines[i])
		}
	}
	if !viaTool.CreatedAt.Equal(viaREST.CreatedAt) || !viaTool.UpdatedAt.Equal(viaREST.UpdatedAt) {
		t.Errorf("timestamps differ across bindings")
	}
}

func TestToolCatalogListsEveryOperation(t *testing.T) {
	for _, tool := range []string{
		ToolCreateCheckout, ToolGetCheckout, ToolUpdateCheckout,
		ToolCompleteCheckout, ToolCancelCheckout,
	} {
		if _, ok := toolInputSchemas[tool]; !ok {
			t.Errorf("tool %s has no input schema", tool)
		}
		doc := inputSchemaDocument(tool)
		if doc["type"] != "object" {
			t.Errorf("schema for %s should describe an object, got %v", tool, doc["type"])
		}
	}
}
