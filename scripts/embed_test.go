package scripts_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shobo/internal/runtime"
	"github.com/jward/shobo/internal/store"
	"github.com/jward/shobo/scripts"
)

const snapshot = `{
    "u1": {"first_name": "Jane", "last_name": "Doe", "history": {
        "op1": ["Widget", 100, true, true],
        "op2": ["Widget", 100, true, false],
        "op3": ["Gadget", 450.5, true, false],
        "op4": ["Gadget", 450.5, false, false, "op3"],
        "op5": ["Widget", 100, true, false],
        "op6": ["Widget", 100, true, false]
    }},
    "u2": {"first_name": "Trixy", "last_name": "Culverhouse", "history": {
        "a": ["Reloop Headphone", 700, true, true],
        "b": ["Reloop Headphone", 700, true, true],
        "c": ["Lamp", 12, true, false],
        "d": ["Lamp", 12, false, false, "c"],
        "e": ["Lamp", 12, true, false],
        "f": ["Lamp", 12, false, false, "e"]
    }}
}`

func runReport(t *testing.T, name string) *runtime.Report {
	t.Helper()
	s, err := store.Load(strings.NewReader(snapshot))
	require.NoError(t, err)
	rt := runtime.NewRuntime(s, "", runtime.WithRuntimeFS(scripts.FS))
	rep, err := rt.RunScript(context.Background(), runtime.ReportScriptPath(name), nil)
	require.NoError(t, err)
	return rep
}

func get(t *testing.T, rep *runtime.Report, key string) any {
	t.Helper()
	v, ok := rep.Get(key)
	require.True(t, ok, "report should emit %q", key)
	return v
}

func TestSummaryReport(t *testing.T) {
	t.Parallel()
	rep := runReport(t, "summary")
	assert.Equal(t, int64(2), get(t, rep, "users"))
	assert.Equal(t, int64(6), get(t, rep, "added"))
	assert.Equal(t, int64(3), get(t, rep, "removed"))
	assert.Equal(t, int64(3), get(t, rep, "purchased"))
}

func TestTopProductsReport(t *testing.T) {
	t.Parallel()
	rep := runReport(t, "top_products")
	assert.Equal(t, map[string]any{"product": "Widget", "count": int64(3)}, get(t, rep, "most_added"))
	assert.Equal(t, map[string]any{"product": "Lamp", "count": int64(2)}, get(t, rep, "most_removed"))
	assert.Equal(t, map[string]any{"product": "Reloop Headphone", "count": int64(2)}, get(t, rep, "most_purchased"))
}

func TestUsersReport(t *testing.T) {
	t.Parallel()
	rep := runReport(t, "users")
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, "u1", rep.Entries[0].Key)
	assert.Equal(t, map[string]any{"name": "Jane Doe", "operations": int64(6), "purchased": int64(1)}, get(t, rep, "u1"))
	assert.Equal(t, map[string]any{"name": "Trixy Culverhouse", "operations": int64(6), "purchased": int64(2)}, get(t, rep, "u2"))
}

func TestEmbeddedReportsPresent(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"summary", "top_products", "users"} {
		_, err := scripts.FS.ReadFile("reports/" + name + ".risor")
		assert.NoError(t, err, name)
	}
}
