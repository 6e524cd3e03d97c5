package shobo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jward/shobo/scripts"
)

const (
	fixturePath = "testdata/users.json"
	trixyID     = "51a4101a4165b76eb1fb6a0ac1b7af364796afd88979fe18076f98c1"
	jane1ID     = "9f0c7b5e2d3a41c6b8e7f1a2d3c4b5a6e7f8091a2b3c4d5e6f708192"
	jane2ID     = "0d1e2f3a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f901a2b"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := Open(fixturePath, opts...)
	require.NoError(t, err)
	return e
}

func TestOpen_LoadsSnapshot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	require.NotNil(t, e.Store())
	require.NotNil(t, e.runtime)
	assert.Equal(t, 3, e.Store().Len())
	assert.Equal(t, fixturePath, e.Source())
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Open(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestOpen_MalformedSnapshot(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"u": {"first_name": "A", "last_name": "B", "history": {
			"r": ["Widget", 1, false, false, "ghost"]
		}}
	}`), 0o644))

	_, err := Open(path)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "u", le.UserID)
	assert.Equal(t, "r", le.OperationID)
}

func TestSave_RefusesInput(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	err := e.Save(fixturePath)
	require.ErrorIs(t, err, ErrUnsafeOutput)
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	out := filepath.Join(t.TempDir(), "safe", "users.json")
	require.NoError(t, e.Save(out))

	back, err := Open(out)
	require.NoError(t, err)
	want, err := e.Query().Query(Filter{Added: true})
	require.NoError(t, err)
	got, err := back.Query().Query(Filter{Added: true})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExport_AndOpenArchive(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	e := newTestEngine(t, WithLogger(zap.New(core)))
	dbPath := filepath.Join(t.TempDir(), "archive", "users.db")

	id, err := e.Export(dbPath)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, logs.FilterMessage("archive written").Len())

	back, err := OpenArchive(dbPath)
	require.NoError(t, err)
	assert.Equal(t, e.Store().Len(), back.Store().Len())
	for _, f := range []Filter{{Purchased: true}, {Added: true}, {}} {
		want, err := e.Query().Query(f)
		require.NoError(t, err)
		got, err := back.Query().Query(f)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestOpenArchive_LogsExportID(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dbPath := filepath.Join(t.TempDir(), "users.db")
	id, err := e.Export(dbPath)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	_, err = OpenArchive(dbPath, WithLogger(zap.New(core)))
	require.NoError(t, err)
	entries := logs.FilterMessage("archive loaded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ContextMap()["export_id"])
}

func TestExport_RefusesInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "users.json")
	data, err := os.ReadFile(fixturePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src, data, 0o644))

	e, err := Open(src)
	require.NoError(t, err)
	_, err = e.Export(src)
	require.ErrorIs(t, err, ErrUnsafeOutput)
}

func TestOpenArchive_Missing(t *testing.T) {
	t.Parallel()
	_, err := OpenArchive(filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
}

func TestRunReport_Embedded(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithScriptsFS(scripts.FS))
	rep, err := e.RunReport(context.Background(), "summary")
	require.NoError(t, err)

	users, ok := rep.Get("users")
	require.True(t, ok)
	assert.Equal(t, int64(3), users)
	purchased, _ := rep.Get("purchased")
	assert.Equal(t, int64(3), purchased)
}

func TestRunReport_FromDisk(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "custom.risor")
	require.NoError(t, os.WriteFile(path, []byte(`emit("janes", len(user_by_name("Jane Doe")))`), 0o644))

	e := newTestEngine(t)
	rep, err := e.RunReport(context.Background(), path)
	require.NoError(t, err)
	janes, _ := rep.Get("janes")
	assert.Equal(t, int64(2), janes)
}

func TestRunReport_ScriptsDirAndFSPrecedence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", "which.risor"), []byte(`emit("from", "disk")`), 0o644))
	mapFS := fstest.MapFS{
		"reports/which.risor": &fstest.MapFile{Data: []byte(`emit("from", "fs")`)},
	}

	rep, err := newTestEngine(t, WithScriptsDir(dir)).RunReport(context.Background(), "which")
	require.NoError(t, err)
	from, _ := rep.Get("from")
	assert.Equal(t, "disk", from)

	rep, err = newTestEngine(t, WithScriptsDir(dir), WithScriptsFS(mapFS)).RunReport(context.Background(), "which")
	require.NoError(t, err)
	from, _ = rep.Get("from")
	assert.Equal(t, "fs", from)
}

func TestRunReport_Unknown(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithScriptsFS(scripts.FS))
	_, err := e.RunReport(context.Background(), "nonexistent")
	require.Error(t, err)
}
