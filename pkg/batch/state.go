package batch

import (
	"sync"
	"time"
)

// State is the solver's single mutable store of in-flight batch data
// (spec §3 BatchState). Single-writer (the solver driver); insertion
// order of Orders is preserved so ingest-order truncation (spec §8
// boundary behaviour) is deterministic.
type State struct {
	mu sync.RWMutex

	BatchID  uint64
	Deadline time.Time

	orderIDs []OrderID
	orders   map[OrderID]*Order
}

// New creates an empty batch state for batchID, closing at deadline.
func New(batchID uint64, deadline time.Time) *State {
	return &State{
		BatchID:  batchID,
		Deadline: deadline,
		orders:   make(map[OrderID]*Order),
	}
}

// AddOrder appends an order, preserving insertion order. Re-adding an
// existing ID is a no-op overwrite (last write wins), matching a map's
// natural semantics; callers are expected to dedupe at ingest.
func (s *State) AddOrder(o *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; !exists {
		s.orderIDs = append(s.orderIDs, o.ID)
	}
	s.orders[o.ID] = o
}

// Cancel marks an order CANCELLED. Returns false if the order is unknown
// (spec §4.8: "If unknown, ignore").
func (s *State) Cancel(id OrderID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false
	}
	o.Status = Cancelled
	return true
}

// Get returns a copy of the order with id, if present.
func (s *State) Get(id OrderID) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// SetStatus updates an order's status (used after settlement submission
// to mark FILLED/PARTIALLY_FILLED, spec §3 lifecycle).
func (s *State) SetStatus(id OrderID, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.Status = status
	}
}

// Len returns the total number of orders tracked (PENDING and otherwise).
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orderIDs)
}

// PendingSnapshot returns a stable, insertion-ordered copy of every
// PENDING order, truncated to maxOrders (spec §8: "maxOrdersPerBatch
// exceeded -> truncate deterministically (first N by ingest order)").
// maxOrders <= 0 means unbounded. This is the snapshot matching operates
// over (spec §5: "All reads of BatchState.orders during matching are
// snapshot reads taken at entry to PROCESSING").
func (s *State) PendingSnapshot(maxOrders int) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0, len(s.orderIDs))
	for _, id := range s.orderIDs {
		o := s.orders[id]
		if o.Status != Pending {
			continue
		}
		out = append(out, *o)
		if maxOrders > 0 && len(out) >= maxOrders {
			break
		}
	}
	return out
}

// Reset clears all orders and advances to a new batch (spec §4.8 "Reset":
// "clear orders, update batch_id, deadline; retain token_pairs" — the pair
// registry lives outside State, in pkg/market, so nothing to retain here).
func (s *State) Reset(newBatchID uint64, newDeadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BatchID = newBatchID
	s.Deadline = newDeadline
	s.orderIDs = nil
	s.orders = make(map[OrderID]*Order)
}

// DeadlinePassed reports whether the current time is at or past the
// batch deadline (drives the PROCESSING transition, spec §4.8).
func (s *State) DeadlinePassed(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !now.Before(s.Deadline)
}
