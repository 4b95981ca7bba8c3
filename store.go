package checkout

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore provides an in-memory implementation of Store.
//
// This implementation is suitable for single-instance deployments where
// checkout state doesn't need to survive process restarts or be shared
// across processes. For distributed deployments, implement Store with a
// shared backend.
//
// A single mutex domain covers the whole map; the store is low-throughput
// and every critical section is bounded (no I/O under the lock), which is
// sufficient for per-id linearizability.
type MemoryStore struct {
	mu        sync.Mutex
	checkouts map[string]*Checkout
	now       func() time.Time
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithClock overrides the store's time source. Intended for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a new in-memory checkout store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		checkouts: make(map[string]*Checkout),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates lines, assigns a fresh id and CREATED status, and inserts
// the new checkout. Nothing is persisted when validation fails.
func (s *MemoryStore) Create(lines []CartLine) (Checkout, error) {
	if err := ValidateLines(lines); err != nil {
		return Checkout{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := &Checkout{
		ID:        uuid.NewString(),
		Status:    StatusCreated,
		Lines:     CloneLines(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.checkouts[c.ID] = c
	return snapshot(c), nil
}

// Get returns a snapshot of the checkout, or a not_found error.
func (s *MemoryStore) Get(id string) (Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[id]
	if !ok {
		return Checkout{}, notFoundError(id)
	}
	return snapshot(c), nil
}

// Update replaces the line list of a CREATED checkout and advances UpdatedAt.
// Against a terminal checkout it returns the stored value unchanged: a retried
// update from an unreliable caller never fails, and never moves the timestamp.
func (s *MemoryStore) Update(id string, lines []CartLine) (Checkout, error) {
	if err := ValidateLines(lines); err != nil {
		return Checkout{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[id]
	if !ok {
		return Checkout{}, notFoundError(id)
	}
	if c.Status.Terminal() {
		return snapshot(c), nil
	}
	c.Lines = CloneLines(lines)
	c.UpdatedAt = s.now()
	return snapshot(c), nil
}

// Complete transitions a CREATED checkout to COMPLETED.
func (s *MemoryStore) Complete(id string) (Checkout, error) {
	return s.finalize(id, StatusCompleted)
}

// Cancel transitions a CREATED checkout to CANCELED.
func (s *MemoryStore) Cancel(id string) (Checkout, error) {
	return s.finalize(id, StatusCanceled)
}

// finalize applies a terminal transition. An already-terminal checkout is
// returned unchanged, whichever terminal state it reached first.
func (s *MemoryStore) finalize(id string, to Status) (Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[id]
	if !ok {
		return Checkout{}, notFoundError(id)
	}
	if c.Status.Terminal() {
		return snapshot(c), nil
	}
	c.Status = to
	c.UpdatedAt = s.now()
	return snapshot(c), nil
}

// Len returns the number of checkouts held by the store.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checkouts)
}

// snapshot copies a stored checkout so callers never hold a mutable
// reference into the store.
func snapshot(c *Checkout) Checkout {
	out := *c
	out.Lines = CloneLines(c.Lines)
	return out
}

// notFoundError builds the not_found sentinel. The message distinguishes the
// two realistic causes: the id was never created, or it was created on a
// different store instance (checkouts live in process memory).
func notFoundError(id string) *Error {
	return NewError(
		ErrCodeNotFound,
		fmt.Sprintf("checkout %q not found: it was never created, or it was created on a different store instance (checkouts are held in process memory)", id),
		map[string]interface{}{"id": id},
	)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
