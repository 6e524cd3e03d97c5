package archive

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jward/shobo/internal/history"
	"github.com/jward/shobo/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	a, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, a.Migrate())
	t.Cleanup(func() { a.Close() })
	return a
}

const testSnapshot = `{
    "u1": {"first_name": "Jane", "last_name": "Doe", "history": {
        "op1": ["Widget", 100, true, true],
        "op2": ["Widget", 100, true, false],
        "op3": ["Gadget", 450.5, true, false],
        "op4": ["Gadget", 450.5, false, false, "op3"]
    }},
    "u2": {"first_name": "Jane", "last_name": "Doe", "history": {
        "a": ["Reloop Headphone", 700, true, false],
        "b": ["Widget", 100, true, false],
        "c": ["Widget", 100, false, false, "b"]
    }},
    "u0": {"first_name": "Trixy", "last_name": "Culverhouse", "history": {}}
}`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Load(strings.NewReader(testSnapshot))
	require.NoError(t, err)
	return s
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)

	for _, table := range []string{"users", "operations", "metadata"} {
		var name string
		err := a.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	require.NoError(t, a.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	var mode string
	require.NoError(t, a.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMetadata_SetAndGet(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)

	got, err := a.GetMetadata("missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, a.SetMetadata("k", "v1"))
	require.NoError(t, a.SetMetadata("k", "v2"))
	got, err = a.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

// =============================================================================
// Write / Read
// =============================================================================

func TestWriteStore_RoundTrip(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	s := newTestStore(t)

	exportID, err := a.WriteStore(s, "data/users.json")
	require.NoError(t, err)
	_, err = uuid.Parse(exportID)
	require.NoError(t, err, "export id should be a uuid")

	got, err := a.GetMetadata(MetaExportID)
	require.NoError(t, err)
	assert.Equal(t, exportID, got)
	got, err = a.GetMetadata(MetaSource)
	require.NoError(t, err)
	assert.Equal(t, "data/users.json", got)
	got, err = a.GetMetadata(MetaUserCount)
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	back, err := a.ReadStore()
	require.NoError(t, err)
	require.Equal(t, s.Len(), back.Len())

	var wantOrder, gotOrder []string
	for u := range s.Users() {
		wantOrder = append(wantOrder, u.ID)
	}
	for u := range back.Users() {
		gotOrder = append(gotOrder, u.ID)
	}
	assert.Equal(t, wantOrder, gotOrder, "user order survives the archive")

	for u := range s.Users() {
		other, err := back.UserByID(u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.FirstName, other.FirstName)
		assert.Equal(t, u.LastName, other.LastName)

		var want, have []history.Operation
		for op := range u.History.All() {
			want = append(want, op)
		}
		for op := range other.History.All() {
			have = append(have, op)
		}
		assert.Equal(t, want, have)
	}
}

func TestWriteStore_ReplacesPreviousExport(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)

	first, err := a.WriteStore(newTestStore(t), "")
	require.NoError(t, err)

	u := store.NewUser("solo", "Only", "One")
	require.NoError(t, u.History.Add(history.Operation{ID: "x", ProductName: "Lamp", Price: 3, Kind: history.Added}))
	small, err := store.New(u)
	require.NoError(t, err)

	second, err := a.WriteStore(small, "")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	back, err := a.ReadStore()
	require.NoError(t, err)
	assert.Equal(t, 1, back.Len())
}

func TestWriteStore_FailedVerificationKeepsPreviousExport(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	s := newTestStore(t)
	first, err := a.WriteStore(s, "")
	require.NoError(t, err)

	a.verify = func(querier, *store.Store) error {
		return ErrCountMismatch
	}
	u := store.NewUser("solo", "Only", "One")
	small, err := store.New(u)
	require.NoError(t, err)
	_, err = a.WriteStore(small, "")
	require.ErrorIs(t, err, ErrCountMismatch)

	id, err := a.GetMetadata(MetaExportID)
	require.NoError(t, err)
	assert.Equal(t, first, id)
	back, err := a.ReadStore()
	require.NoError(t, err)
	assert.Equal(t, s.Len(), back.Len())
}

func TestVerifyCounts(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	s := newTestStore(t)
	_, err := a.WriteStore(s, "")
	require.NoError(t, err)
	require.NoError(t, verifyCounts(a.db, s))

	empty, err := store.New()
	require.NoError(t, err)
	err = verifyCounts(a.db, empty)
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestReadStore_InvalidRecords(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	_, err := a.db.Exec("INSERT INTO users (id, first_name, last_name, position) VALUES ('u', 'A', 'B', 0)")
	require.NoError(t, err)
	_, err = a.db.Exec(`INSERT INTO operations (user_id, id, position, product_name, price, added, purchased, reversed_id)
		VALUES ('u', 'r', 0, 'W', 1, 0, 0, 'missing')`)
	require.NoError(t, err)

	_, err = a.ReadStore()
	var le *store.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "r", le.OperationID)
}

// =============================================================================
// Counts
// =============================================================================

func TestCounts_MatchesInMemoryEngine(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	s := newTestStore(t)
	_, err := a.WriteStore(s, "")
	require.NoError(t, err)

	filters := []history.Filter{
		{Purchased: true},
		{Added: true},
		{},
		{Purchased: true, Added: false},
		{Added: true, PriceAbove: ptr(100.0), PriceBelow: ptr(450.5)},
		{Added: true, ProductName: ptr("Widget")},
		{Added: true, ProductName: ptr("blabla")},
	}
	for _, f := range filters {
		want, err := s.Query(f, nil)
		require.NoError(t, err)
		got, err := a.Counts(f, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got, "filter %+v", f)

		for u := range s.Users() {
			want, err := s.Query(f, &u.ID)
			require.NoError(t, err)
			got, err := a.Counts(f, &u.ID)
			require.NoError(t, err)
			assert.Equal(t, want, got, "filter %+v user %s", f, u.ID)
		}
	}
}

func TestCounts_UnknownUser(t *testing.T) {
	t.Parallel()
	a := newTestArchive(t)
	_, err := a.Counts(history.Filter{}, ptr("ghost"))
	var nf *store.NotFoundError
	require.ErrorAs(t, err, &nf)
}
