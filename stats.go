package shobo

import (
	"github.com/shopspring/decimal"

	"github.com/jward/shobo/internal/history"
)

// Stats summarizes raw operation flags across a Store. Unlike Query, the
// counts here do not split purchased additions from the rest: Added counts
// every addition-kind operation, purchased or not.
type Stats struct {
	Users      int `json:"users"`
	Operations int `json:"operations"`
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Purchased  int `json:"purchased"`

	// Percentages truncated toward zero; 0 when the denominator is 0.
	PurchasedPctOfAdded int `json:"purchased_pct_of_added"`
	PurchasedPctOfAll   int `json:"purchased_pct_of_all"`

	MostAdded     string `json:"most_added"`
	MostRemoved   string `json:"most_removed"`
	MostPurchased string `json:"most_purchased"`

	AddedByProduct     map[string]int `json:"added_by_product"`
	RemovedByProduct   map[string]int `json:"removed_by_product"`
	PurchasedByProduct map[string]int `json:"purchased_by_product"`

	PurchasedValue decimal.Decimal `json:"purchased_value"`
}

// Summarize computes Stats for s.
func Summarize(s *Store) Stats {
	st := Stats{
		Users:              s.Len(),
		AddedByProduct:     make(map[string]int),
		RemovedByProduct:   make(map[string]int),
		PurchasedByProduct: make(map[string]int),
		PurchasedValue:     decimal.Zero,
	}
	for u := range s.Users() {
		for op := range u.History.All() {
			st.Operations++
			if op.Kind == history.Added {
				st.Added++
				st.AddedByProduct[op.ProductName]++
			} else {
				st.Removed++
				st.RemovedByProduct[op.ProductName]++
			}
			if op.Purchased {
				st.Purchased++
				st.PurchasedByProduct[op.ProductName]++
				st.PurchasedValue = st.PurchasedValue.Add(decimal.NewFromFloat(op.Price))
			}
		}
	}
	if st.Added > 0 {
		st.PurchasedPctOfAdded = st.Purchased * 100 / st.Added
	}
	if st.Operations > 0 {
		st.PurchasedPctOfAll = st.Purchased * 100 / st.Operations
	}
	st.MostAdded = mostFrequent(st.AddedByProduct)
	st.MostRemoved = mostFrequent(st.RemovedByProduct)
	st.MostPurchased = mostFrequent(st.PurchasedByProduct)
	return st
}

// mostFrequent returns the key with the highest count, breaking ties by the
// lexically smallest name. Empty input yields "".
func mostFrequent(counts map[string]int) string {
	best, bestN := "", 0
	for name, n := range counts {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best
}
