// Package sqlite provides the public API for the SQLite storage backend.
// This package exposes the factory function while keeping implementation
// details internal.
package sqlite

import (
	"github.com/mesh-intelligence/graphfill/internal/sqlite"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Backend is the SQLite storage engine.
type Backend = sqlite.Backend

// Option configures a Backend.
type Option = sqlite.Option

// Backend options.
var (
	WithLogger = sqlite.WithLogger
	WithClock  = sqlite.WithClock
)

// NewBackend creates a new SQLite backend for the entity types in cat.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend(cat)
//	err := backend.Attach(types.Config{
//	    Backend:    types.BackendSQLite,
//	    DataDir:    ".graphfill",
//	    SchemaFile: "schema.sql",
//	})
//	defer backend.Detach()
func NewBackend(cat types.Catalog, opts ...Option) *Backend {
	return sqlite.NewBackend(cat, opts...)
}
