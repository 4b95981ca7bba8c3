package http

import (
	"time"

	checkout "github.com/unified-commerce/checkout/go"
)

// ============================================================================
// REST wire shapes
// ============================================================================

// The REST binding carries checkouts with a flat line list. These types are
// one half of the dual wire encoding; the tool-invocation binding's nested
// line_items shape lives in the mcp package. Both decode into the one
// internal checkout.Checkout value.

// Line is one cart line on the REST wire.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CheckoutResponse is the REST encoding of a Checkout.
type CheckoutResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateCheckoutRequest is the body of POST /checkout.
type CreateCheckoutRequest struct {
	Lines []Line `json:"lines"`
}

// UpdateCheckoutRequest is the body of PATCH /checkout/{id}.
type UpdateCheckoutRequest struct {
	Lines []Line `json:"lines"`
}

// ErrorResponse is the REST encoding of a checkout.Error.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ============================================================================
// Encoder/decoder pair
// ============================================================================

// EncodeCheckout translates an internal Checkout into its REST shape.
func EncodeCheckout(c checkout.Checkout) CheckoutResponse {
	lines := make([]Line, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = Line{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return CheckoutResponse{
		ID:        c.ID,
		Status:    string(c.Status),
		Lines:     lines,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// DecodeCheckout translates a REST checkout back into the internal shape.
func DecodeCheckout(resp CheckoutResponse) checkout.Checkout {
	return checkout.Checkout{
		ID:        resp.ID,
		Status:    checkout.Status(resp.Status),
		Lines:     DecodeLines(resp.Lines),
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
	}
}

// EncodeLines translates internal cart lines to the REST shape.
func EncodeLines(lines []checkout.CartLine) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return out
}

// DecodeLines translates REST lines to internal cart lines.
func DecodeLines(lines []Line) []checkout.CartLine {
	out := make([]checkout.CartLine, len(lines))
	for i, l := range lines {
		out[i] = checkout.CartLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return out
}

// encodeError translates a checkout error into its REST shape.
func encodeError(err *checkout.Error) ErrorResponse {
	return ErrorResponse{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
}
