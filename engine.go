package shobo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/shobo/internal/archive"
	"github.com/jward/shobo/internal/logging"
	"github.com/jward/shobo/internal/runtime"
	"github.com/jward/shobo/internal/store"
)

// Engine owns a loaded Store and the services built on it: queries,
// persistence and report scripts. It replaces any process-wide singleton;
// callers create one and pass it where needed.
type Engine struct {
	store      *store.Store
	source     string // path the snapshot was loaded from, if any
	runtime    *runtime.Runtime
	scriptsDir string
	scriptsFS  fs.FS
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the Engine and its report runtime.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNop(l)
	}
}

// WithScriptsFS configures the Engine to load report scripts from the given
// filesystem, typically the embedded scripts.FS.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithScriptsDir configures the Engine to load report scripts from disk.
// Ignored when WithScriptsFS is also set.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// New creates an Engine over an already validated Store.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(e.logger)}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(s, e.scriptsDir, rtOpts...)
	return e
}

// Open loads the snapshot at path and returns an Engine over it. Malformed
// snapshots are reported as *LoadError.
func Open(path string, opts ...Option) (*Engine, error) {
	s, err := store.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shobo: %w", err)
	}
	e := New(s, opts...)
	e.source = path
	e.logger.Debug("snapshot loaded", zap.String("path", path), zap.Int("users", s.Len()))
	return e, nil
}

// OpenArchive loads a store previously written by Export.
func OpenArchive(dbPath string, opts ...Option) (*Engine, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("shobo: open archive: %w", err)
	}
	a, err := archive.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("shobo: %w", err)
	}
	defer a.Close()
	if err := a.Migrate(); err != nil {
		return nil, fmt.Errorf("shobo: %w", err)
	}
	s, err := a.ReadStore()
	if err != nil {
		return nil, fmt.Errorf("shobo: read archive: %w", err)
	}
	exportID, err := a.GetMetadata(archive.MetaExportID)
	if err != nil {
		return nil, fmt.Errorf("shobo: read archive: %w", err)
	}
	e := New(s, opts...)
	e.logger.Debug("archive loaded",
		zap.String("path", dbPath),
		zap.String("export_id", exportID),
		zap.Int("users", s.Len()),
	)
	return e, nil
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Source returns the path the snapshot was loaded from, or "".
func (e *Engine) Source() string {
	return e.source
}

// Query returns a QueryBuilder for aggregate queries over the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// Save writes the snapshot to path. It refuses to overwrite the file the
// Engine was loaded from and returns ErrUnsafeOutput instead.
func (e *Engine) Save(path string) error {
	if err := e.store.SaveFile(path, e.source); err != nil {
		return fmt.Errorf("shobo: save: %w", err)
	}
	e.logger.Info("snapshot saved", zap.String("path", path), zap.Int("users", e.store.Len()))
	return nil
}

// Export writes the Store to a SQLite archive at dbPath, replacing its
// previous contents, and returns the export id. The write is discarded if
// the archive does not answer the basic queries like the Store.
func (e *Engine) Export(dbPath string) (string, error) {
	if e.source != "" {
		same, err := sameFile(dbPath, e.source)
		if err != nil {
			return "", fmt.Errorf("shobo: export: %w", err)
		}
		if same {
			return "", fmt.Errorf("shobo: export to %s: %w", dbPath, ErrUnsafeOutput)
		}
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("shobo: export: %w", err)
		}
	}

	a, err := archive.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("shobo: export: %w", err)
	}
	defer a.Close()
	if err := a.Migrate(); err != nil {
		return "", fmt.Errorf("shobo: export: %w", err)
	}
	id, err := a.WriteStore(e.store, e.source)
	if err != nil {
		return "", fmt.Errorf("shobo: export: %w", err)
	}
	e.logger.Info("archive written",
		zap.String("path", dbPath),
		zap.String("export_id", id),
		zap.Int("users", e.store.Len()),
	)
	return id, nil
}

// RunReport runs a report script. name is either the name of a built-in
// report (for example "summary") or a path to a .risor file on disk.
func (e *Engine) RunReport(ctx context.Context, name string) (*Report, error) {
	if strings.HasSuffix(name, ".risor") {
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("shobo: report: %w", err)
		}
		return e.runtime.RunSource(ctx, string(src), nil)
	}
	return e.runtime.RunScript(ctx, runtime.ReportScriptPath(name), nil)
}

// sameFile reports whether a and b name the same existing file.
func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
