package checkout

// Store owns checkout resources and enforces the lifecycle state machine.
//
// All five operations are linearizable per checkout id: concurrent calls
// against the same id behave as if serialized in some order, and the last
// write in that order is observed by subsequent reads. Returned Checkout
// values are snapshots.
//
// Stores signal failure with sentinel error values rather than panics:
// unknown ids produce a not_found error, malformed line lists produce an
// invalid_input error, and nothing else escapes. Mutations against a
// checkout already in a terminal state are idempotent no-ops that return
// the stored value unchanged.
type Store interface {
	// Create validates lines, assigns a fresh id and CREATED status, and
	// inserts the new checkout.
	Create(lines []CartLine) (Checkout, error)

	// Get returns a snapshot of the checkout, or a not_found error.
	Get(id string) (Checkout, error)

	// Update replaces the line list of a CREATED checkout. Against a
	// terminal checkout it returns the stored value unchanged.
	Update(id string, lines []CartLine) (Checkout, error)

	// Complete transitions a CREATED checkout to COMPLETED. Calling it
	// again returns the already-completed checkout unchanged.
	Complete(id string) (Checkout, error)

	// Cancel transitions a CREATED checkout to CANCELED, with the same
	// idempotent no-op behavior as Complete.
	Cancel(id string) (Checkout, error)
}
