package filler

import (
	"context"
	"sort"
	"sync"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// RelationFiller wires one relation of parent from data. data is the raw
// value found under the relation's key: nil, an object or a list of objects.
type RelationFiller interface {
	Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error
}

// RelationFillerFunc adapts a function to RelationFiller.
type RelationFillerFunc func(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error

// Fill calls fn.
func (fn RelationFillerFunc) Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
	return fn(ctx, parent, rel, data, name)
}

// Constructor builds a relation filler bound to a session.
type Constructor func(f *Filler) RelationFiller

// Factory selects the relation filler for a relation kind. A kind with no
// registered constructor falls back along RelationKind.Parent, so a filler
// registered for a general kind also serves its polymorphic variants.
// Instances are built once per registered kind.
type Factory struct {
	mu           sync.Mutex
	filler       *Filler
	constructors map[types.RelationKind]Constructor
	instances    map[types.RelationKind]RelationFiller
}

// NewFactory returns a factory with the built-in fillers registered.
func NewFactory(f *Filler) *Factory {
	fa := &Factory{
		filler:       f,
		constructors: make(map[types.RelationKind]Constructor),
		instances:    make(map[types.RelationKind]RelationFiller),
	}
	fa.constructors[types.BelongsTo] = newBelongsTo
	fa.constructors[types.HasOne] = newHasOne
	fa.constructors[types.HasMany] = newHasMany
	fa.constructors[types.BelongsToMany] = newBelongsToMany
	fa.constructors[types.HasOneThrough] = newHasOneThrough
	fa.constructors[types.HasManyThrough] = newHasManyThrough
	return fa
}

// Register sets the constructor for kind and drops any instance built from
// the previous one. A nil constructor removes the registration.
func (fa *Factory) Register(kind types.RelationKind, c Constructor) {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	delete(fa.instances, kind)
	if c == nil {
		delete(fa.constructors, kind)
		return
	}
	fa.constructors[kind] = c
}

// Registered returns the kinds with a constructor, sorted.
func (fa *Factory) Registered() []types.RelationKind {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	kinds := make([]types.RelationKind, 0, len(fa.constructors))
	for k := range fa.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Create returns the filler for rel, a relation of t.
func (fa *Factory) Create(t *types.EntityType, rel *types.Relation) (RelationFiller, error) {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	for kind := rel.Kind; kind != ""; kind = kind.Parent() {
		if rf, ok := fa.instances[kind]; ok {
			return rf, nil
		}
		c, ok := fa.constructors[kind]
		if !ok {
			continue
		}
		rf := c(fa.filler)
		fa.instances[kind] = rf
		return rf, nil
	}
	return nil, &types.RelationError{
		Type:     t.Name,
		Relation: rel.Name,
		Kind:     rel.Kind,
		Err:      types.ErrNoRelationFiller,
	}
}
