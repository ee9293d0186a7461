// Package filler provides the public API for materializing entity graphs
// from nested data. This package exposes the session constructor and the
// relation filler extension points while keeping implementation details
// internal.
package filler

import (
	"github.com/mesh-intelligence/graphfill/internal/filler"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Filler is one fill session.
type Filler = filler.Filler

// RelationFiller wires one relation kind.
type RelationFiller = filler.RelationFiller

// RelationFillerFunc adapts a function to RelationFiller.
type RelationFillerFunc = filler.RelationFillerFunc

// Constructor builds a relation filler bound to a session.
type Constructor = filler.Constructor

// Option configures a Filler.
type Option = filler.Option

// Filler options.
var (
	WithLogger         = filler.WithLogger
	WithKeyGenerator   = filler.WithKeyGenerator
	WithClock          = filler.WithClock
	WithRelationFiller = filler.WithRelationFiller
)

// New starts a fill session over storage.
//
// Example:
//
//	f := filler.New(backend, cat)
//	user, err := f.Fill(ctx, "User", data)
//	if err != nil {
//	    return err
//	}
//	err = f.Flush(ctx)
func New(storage types.Storage, cat types.Catalog, opts ...Option) *Filler {
	return filler.New(storage, cat, opts...)
}
