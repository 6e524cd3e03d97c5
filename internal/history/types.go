package history

import "fmt"

// Kind records whether an operation put an item into the basket or took one out.
type Kind int

const (
	Added Kind = iota
	Removed
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Operation is one recorded basket event.
//
// Purchased is only meaningful for Added operations. ReversedID is set only
// on Removed operations and names the Added operation being cancelled.
type Operation struct {
	ID          string
	ProductName string
	Price       float64
	Kind        Kind
	Purchased   bool
	ReversedID  *string
}

// IsAvailable reports whether op is an Added operation that has not been
// purchased. Whether it was later removed is tracked by the History.
func (op Operation) IsAvailable() bool {
	return op.Kind == Added && !op.Purchased
}

// Filter selects operations for aggregation. Nil pointer fields are not applied.
type Filter struct {
	Purchased   bool
	Added       bool
	PriceAbove  *float64 // inclusive lower bound
	PriceBelow  *float64 // inclusive upper bound
	ProductName *string  // exact match
}

// Normalize returns f with Added forced to true when Purchased is requested.
// Purchased items are Added-kind by definition, so "purchased and removed"
// cannot be expressed.
func (f Filter) Normalize() Filter {
	if f.Purchased {
		f.Added = true
	}
	return f
}

// Matches reports whether op passes f. f is expected to be normalized.
func (f Filter) Matches(op *Operation) bool {
	if (op.Kind == Added) != f.Added {
		return false
	}
	if op.Purchased != f.Purchased {
		return false
	}
	if f.ProductName != nil && op.ProductName != *f.ProductName {
		return false
	}
	if f.PriceAbove != nil && op.Price < *f.PriceAbove {
		return false
	}
	if f.PriceBelow != nil && op.Price > *f.PriceBelow {
		return false
	}
	return true
}

// DuplicateIDError is returned when an operation id is already present in a history.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate operation id %q", e.ID)
}
