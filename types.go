package checkout

import (
	"time"
)

// Status is the lifecycle state of a Checkout.
type Status string

// Checkout lifecycle states. CREATED is the only non-terminal state;
// no transition leaves COMPLETED or CANCELED.
const (
	StatusCreated   Status = "CREATED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// CartLine is one product/quantity pair within a checkout.
// Quantity must be >= 1 at every boundary.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Checkout is the central resource representing one cart's purchase attempt.
//
// A Checkout value handed out by a Store is always a snapshot: the store owns
// the only mutable copy, and Lines on a returned value may be modified freely
// by the caller without affecting stored state.
type Checkout struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CloneLines returns an independent copy of a line list.
func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return nil
	}
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}

// ValidateLines checks a line list against the cart invariants: the list must
// be non-empty and every quantity must be a positive integer.
func ValidateLines(lines []CartLine) error {
	if len(lines) == 0 {
		return NewError(ErrCodeInvalidInput, "cart must contain at least one line item", nil)
	}
	for i, line := range lines {
		if line.ProductID == "" {
			return NewError(ErrCodeInvalidInput, "line item is missing a product id", map[string]interface{}{
				"index": i,
			})
		}
		if line.Quantity < 1 {
			return NewError(ErrCodeInvalidInput, "line item quantity must be at least 1", map[string]interface{}{
				"index":     i,
				"productId": line.ProductID,
				"quantity":  line.Quantity,
			})
		}
	}
	return nil
}
