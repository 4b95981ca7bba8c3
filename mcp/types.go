package mcp

import (
	"time"

	checkout "github.com/unified-commerce/checkout/go"
)

// Protocol constants for the checkout tool surface.
const (
	// ProfileMetaKey is the _meta key carrying the resource-semantics
	// profile tag on every tool call.
	ProfileMetaKey = "commerce/profile"

	// ProfileCheckoutV1 is the only profile this gateway recognizes.
	ProfileCheckoutV1 = "commerce.checkout.v1"
)

// Tool names exposed by the gateway.
const (
	ToolCreateCheckout   = "create_checkout"
	ToolGetCheckout      = "get_checkout"
	ToolUpdateCheckout   = "update_checkout"
	ToolCompleteCheckout = "complete_checkout"
	ToolCancelCheckout   = "cancel_checkout"
)

// ============================================================================
// Tool wire shapes
// ============================================================================

// The tool-invocation binding nests each product reference under an item
// object. These types are the second half of the dual wire encoding (the
// REST binding's flat lines live in the http package); both decode into the
// one internal checkout.Checkout value.

// ToolItem is a product reference on the tool wire.
type ToolItem struct {
	ID string `json:"id"`
}

// ToolLineItem is one cart line on the tool wire.
type ToolLineItem struct {
	Item     ToolItem `json:"item"`
	Quantity int      `json:"quantity"`
}

// ToolCheckout is the tool-wire encoding of a Checkout.
type ToolCheckout struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	LineItems []ToolLineItem `json:"line_items"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// CreateCheckoutArgs are the arguments of create_checkout.
type CreateCheckoutArgs struct {
	LineItems []ToolLineItem `json:"line_items"`
}

// CheckoutIDArgs are the arguments of get/complete/cancel_checkout.
type CheckoutIDArgs struct {
	ID string `json:"id"`
}

// UpdateCheckoutArgs are the arguments of update_checkout.
type UpdateCheckoutArgs struct {
	ID        string         `json:"id"`
	LineItems []ToolLineItem `json:"line_items"`
}

// ============================================================================
// Encoder/decoder pair
// ============================================================================

// EncodeToolCheckout translates an internal Checkout into its tool-wire shape.
func EncodeToolCheckout(c checkout.Checkout) ToolCheckout {
	items := make([]ToolLineItem, len(c.Lines))
	for i, l := range c.Lines {
		items[i] = ToolLineItem{Item: ToolItem{ID: l.ProductID}, Quantity: l.Quantity}
	}
	return ToolCheckout{
		ID:        c.ID,
		Status:    string(c.Status),
		LineItems: items,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// DecodeToolCheckout translates a tool-wire checkout back into the internal
// shape.
func DecodeToolCheckout(tc ToolCheckout) checkout.Checkout {
	return checkout.Checkout{
		ID:        tc.ID,
		Status:    checkout.Status(tc.Status),
		Lines:     DecodeToolLines(tc.LineItems),
		CreatedAt: tc.CreatedAt,
		UpdatedAt: tc.UpdatedAt,
	}
}

// EncodeToolLines translates internal cart lines to the tool-wire shape.
func EncodeToolLines(lines []checkout.CartLine) []ToolLineItem {
	out := make([]ToolLineItem, len(lines))
	for i, l := range lines {
		out[i] = ToolLineItem{Item: ToolItem{ID: l.ProductID}, Quantity: l.Quantity}
	}
	return out
}

// DecodeToolLines translates tool-wire line items to internal cart lines.
func DecodeToolLines(items []ToolLineItem) []checkout.CartLine {
	out := make([]checkout.CartLine, len(items))
	for i, it := range items {
		out[i] = checkout.CartLine{ProductID: it.Item.ID, Quantity: it.Quantity}
	}
	return out
}
