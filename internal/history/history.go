package history

import (
	"errors"
	"fmt"
	"iter"
)

// History is the insertion-ordered set of one user's operations, keyed by id.
// It is not safe for concurrent mutation; once loaded it is only read.
type History struct {
	ops   []Operation
	index map[string]int

	// removedBy maps a reversed Added operation id to the Removed operation
	// that cancelled it.
	removedBy map[string]string
}

// New returns an empty History.
func New() *History {
	return &History{
		index:     make(map[string]int),
		removedBy: make(map[string]string),
	}
}

// Add appends op. It fails with *DuplicateIDError if op.ID is already present.
func (h *History) Add(op Operation) error {
	if _, ok := h.index[op.ID]; ok {
		return &DuplicateIDError{ID: op.ID}
	}
	if op.ReversedID != nil {
		target := *op.ReversedID
		op.ReversedID = &target
		if _, taken := h.removedBy[target]; !taken {
			h.removedBy[target] = op.ID
		}
	}
	h.index[op.ID] = len(h.ops)
	h.ops = append(h.ops, op)
	return nil
}

// Len returns the number of operations.
func (h *History) Len() int {
	return len(h.ops)
}

// Get returns a copy of the operation with the given id.
func (h *History) Get(id string) (Operation, bool) {
	i, ok := h.index[id]
	if !ok {
		return Operation{}, false
	}
	return h.ops[i], true
}

// All yields the operations in insertion order. The sequence can be ranged
// over any number of times and yields copies.
func (h *History) All() iter.Seq[Operation] {
	return func(yield func(Operation) bool) {
		for _, op := range h.ops {
			if !yield(op) {
				return
			}
		}
	}
}

// IsRemoved reports whether a Removed operation in h reverses id.
func (h *History) IsRemoved(id string) bool {
	_, ok := h.removedBy[id]
	return ok
}

// Available returns the ids of Added operations that are neither purchased
// nor removed, in insertion order.
func (h *History) Available() []string {
	var ids []string
	for _, op := range h.ops {
		if op.IsAvailable() && !h.IsRemoved(op.ID) {
			ids = append(ids, op.ID)
		}
	}
	return ids
}

// MarkPurchased flips the purchased flag of an available Added operation.
func (h *History) MarkPurchased(id string) error {
	i, ok := h.index[id]
	if !ok {
		return fmt.Errorf("mark purchased: unknown operation %q", id)
	}
	if !h.ops[i].IsAvailable() || h.IsRemoved(id) {
		return fmt.Errorf("mark purchased: operation %q is not available", id)
	}
	h.ops[i].Purchased = true
	return nil
}

// Query counts the operations matching f, grouped by product name. f is
// normalized first. An empty map is returned when nothing matches.
func (h *History) Query(f Filter) map[string]int {
	f = f.Normalize()
	counts := make(map[string]int)
	for i := range h.ops {
		if f.Matches(&h.ops[i]) {
			counts[h.ops[i].ProductName]++
		}
	}
	return counts
}

// ErrInvalidOperation is wrapped by every error returned from Validate.
var ErrInvalidOperation = errors.New("invalid operation")

// Validate checks the per-record and cross-record invariants of h: product
// names are non-empty, prices are non-negative, only Added operations carry
// a purchased flag, and every Removed operation reverses a distinct Added,
// unpurchased operation of this history. The first violation is returned
// together with the offending operation id.
func (h *History) Validate() (string, error) {
	consumed := make(map[string]string, len(h.removedBy))
	seen := make(map[string]bool, len(h.ops))
	for _, op := range h.ops {
		seen[op.ID] = true
		if op.ProductName == "" {
			return op.ID, fmt.Errorf("%w: empty product name", ErrInvalidOperation)
		}
		if op.Price < 0 {
			return op.ID, fmt.Errorf("%w: negative price %v", ErrInvalidOperation, op.Price)
		}
		switch op.Kind {
		case Added:
			if op.ReversedID != nil {
				return op.ID, fmt.Errorf("%w: added operation reverses %q", ErrInvalidOperation, *op.ReversedID)
			}
		case Removed:
			if op.Purchased {
				return op.ID, fmt.Errorf("%w: removed operation marked purchased", ErrInvalidOperation)
			}
			if op.ReversedID == nil {
				return op.ID, fmt.Errorf("%w: removed operation without reversed id", ErrInvalidOperation)
			}
			target := *op.ReversedID
			t, ok := h.Get(target)
			if !ok {
				return op.ID, fmt.Errorf("%w: reversed operation %q does not exist", ErrInvalidOperation, target)
			}
			if !seen[target] {
				return op.ID, fmt.Errorf("%w: reversed operation %q does not precede removal", ErrInvalidOperation, target)
			}
			if t.Kind != Added {
				return op.ID, fmt.Errorf("%w: reversed operation %q is not an addition", ErrInvalidOperation, target)
			}
			if t.Purchased {
				return op.ID, fmt.Errorf("%w: reversed operation %q was purchased", ErrInvalidOperation, target)
			}
			if prev, dup := consumed[target]; dup {
				return op.ID, fmt.Errorf("%w: reversed operation %q already removed by %q", ErrInvalidOperation, target, prev)
			}
			consumed[target] = op.ID
		default:
			return op.ID, fmt.Errorf("%w: unknown kind %v", ErrInvalidOperation, op.Kind)
		}
	}
	return "", nil
}
