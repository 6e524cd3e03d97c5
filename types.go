package shobo

import (
	"github.com/jward/shobo/internal/history"
	"github.com/jward/shobo/internal/runtime"
	"github.com/jward/shobo/internal/store"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// API. External consumers use these names; no conversion is needed.

type Store = store.Store
type Operation = history.Operation
type Filter = history.Filter
type Kind = history.Kind
type Report = runtime.Report
type ReportEntry = runtime.Entry

type LoadError = store.LoadError
type NotFoundError = store.NotFoundError

const (
	Added   = history.Added
	Removed = history.Removed
)

// ErrUnsafeOutput is returned when a save would overwrite the input snapshot.
var ErrUnsafeOutput = store.ErrUnsafeOutput
