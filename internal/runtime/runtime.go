// Package runtime embeds a Risor VM and exposes the user store to report
// scripts through query host functions.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/shobo/internal/logging"
	"github.com/jward/shobo/internal/store"
)

// Runtime runs report scripts against a loaded Store.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	logger     *zap.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger routes script log calls to l.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logging.OrNop(l)
	}
}

// NewRuntime creates a Runtime wired to the given Store and scripts directory.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entry is one value emitted by a script.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Report collects emitted values in emission order.
type Report struct {
	Entries []Entry `json:"entries"`
}

// Get returns the last value emitted under key.
func (rep *Report) Get(key string) (any, bool) {
	for i := len(rep.Entries) - 1; i >= 0; i-- {
		if rep.Entries[i].Key == key {
			return rep.Entries[i].Value, true
		}
	}
	return nil, false
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (*Report, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (*Report, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (*Report, error) {
	report := &Report{}
	globals := r.buildGlobals(report, label, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return report, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// fs.FS paths are always relative ("/reports/x.risor" -> "reports/x.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ReportScriptPath returns the path to a named report script.
func ReportScriptPath(name string) string {
	return filepath.Join("reports", name+".risor")
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(report *Report, label string, extra map[string]any) map[string]any {
	globals := map[string]any{
		"emit": makeEmitFn(report),
		"log":  mustProxy(&logObject{logger: r.logger.With(zap.String("script", label))}),
	}

	// Expose the Store if available (nil during some tests).
	if r.store != nil {
		globals["query"] = makeQueryFn(r.store)
		globals["query_user"] = makeQueryUserFn(r.store)
		globals["user_by_id"] = makeUserByIDFn(r.store)
		globals["user_by_name"] = makeUserByNameFn(r.store)
		globals["user_ids"] = makeUserIDsFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
