package shobo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shobo/internal/store"
)

func TestSummarize_Fixture(t *testing.T) {
	t.Parallel()
	st := Summarize(newTestEngine(t).Store())

	assert.Equal(t, 3, st.Users)
	assert.Equal(t, 11, st.Operations)
	assert.Equal(t, 9, st.Added)
	assert.Equal(t, 2, st.Removed)
	assert.Equal(t, 3, st.Purchased)
	assert.Equal(t, 33, st.PurchasedPctOfAdded)
	assert.Equal(t, 27, st.PurchasedPctOfAll)

	// Reloop Headphone and Widget tie on additions; the smaller name wins.
	assert.Equal(t, "Reloop Headphone", st.MostAdded)
	assert.Equal(t, "Desk Lamp", st.MostRemoved)
	assert.Equal(t, "Reloop Headphone", st.MostPurchased)

	assert.Equal(t, map[string]int{"Reloop Headphone": 2, "Widget": 1}, st.PurchasedByProduct)
	assert.Equal(t, map[string]int{"Fisherprice Baby Mixer": 1, "Desk Lamp": 1}, st.RemovedByProduct)
	assert.True(t, decimal.NewFromInt(1500).Equal(st.PurchasedValue), "got %s", st.PurchasedValue)
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()
	s, err := store.New()
	require.NoError(t, err)
	st := Summarize(s)
	assert.Zero(t, st.Operations)
	assert.Zero(t, st.PurchasedPctOfAdded)
	assert.Zero(t, st.PurchasedPctOfAll)
	assert.Empty(t, st.MostAdded)
	assert.True(t, st.PurchasedValue.IsZero())
}

func TestSummarize_DecimalPrecision(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cents.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"u": {"first_name": "A", "last_name": "B", "history": {
		"a": ["Gum", 0.1, true, true],
		"b": ["Gum", 0.2, true, true]
	}}}`), 0o644))
	e, err := Open(path)
	require.NoError(t, err)
	st := Summarize(e.Store())
	assert.Equal(t, "0.3", st.PurchasedValue.String())
}
