// Package resolver turns input data into entity handles: it finds the
// persisted record a node refers to, or builds a new one, and guarantees one
// handle per identity within a session.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/graphfill/internal/identity"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. The default is the global pingcap logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// Resolver finds or creates entities against an identity map and storage.
type Resolver struct {
	storage  types.Storage
	identity *identity.Map
	keys     types.KeyGenerator
	logger   *zap.Logger
}

// New returns a resolver over storage, caching handles in ids and keying new
// entities with keys.
func New(storage types.Storage, ids *identity.Map, keys types.KeyGenerator, opts ...Option) *Resolver {
	r := &Resolver{
		storage:  storage,
		identity: ids,
		keys:     keys,
		logger:   log.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Identity returns the session identity map.
func (r *Resolver) Identity() *identity.Map { return r.identity }

// Resolve returns the handle data refers to. Lookup order is primary key
// (identity map, then storage), then each unique field of t (identity map,
// then storage). When nothing matches a new handle is built, keyed from data
// or the key generator, filled and mapped.
func (r *Resolver) Resolve(ctx context.Context, t *types.EntityType, data map[string]any) (*types.Entity, error) {
	e, err := r.Find(ctx, t, data)
	if err != nil {
		return nil, err
	}
	if e != nil {
		return e, nil
	}
	return r.build(t, data)
}

// Find looks data up without creating anything. It returns nil, nil when no
// record matches.
func (r *Resolver) Find(ctx context.Context, t *types.EntityType, data map[string]any) (*types.Entity, error) {
	e, err := r.FindByKey(ctx, t, data)
	if err != nil || e != nil {
		return e, err
	}
	return r.findByUnique(ctx, t, data)
}

// FindByKey looks data up by primary key only: identity map first, then
// storage. It returns nil, nil when data carries no key or nothing matches.
func (r *Resolver) FindByKey(ctx context.Context, t *types.EntityType, data map[string]any) (*types.Entity, error) {
	key, ok := keyOf(t, data)
	if !ok {
		return nil, nil
	}
	if e, ok := r.identity.Lookup(t, key); ok {
		return e, nil
	}

	found, err := r.storage.Find(ctx, t, key)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", types.HashOf(t, key), err)
	}
	return r.identity.Remember(found), nil
}

func (r *Resolver) findByUnique(ctx context.Context, t *types.EntityType, data map[string]any) (*types.Entity, error) {
	for _, field := range t.Unique {
		value, ok := data[field]
		if !ok || types.KeyString(value) == "" {
			continue
		}
		if e, ok := r.identity.FindBy(t, field, value); ok {
			return e, nil
		}

		found, err := r.storage.FindByField(ctx, t, field, value)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("finding %s by %s: %w", t.Name, field, err)
		}
		r.logger.Debug("resolved by unique field",
			zap.String("type", t.Name), zap.String("field", field))
		return r.identity.Remember(found), nil
	}
	return nil, nil
}

// FindByField looks up the entity of type t whose field equals value:
// identity map first, then storage. It returns nil, nil when nothing
// matches.
func (r *Resolver) FindByField(ctx context.Context, t *types.EntityType, field string, value any) (*types.Entity, error) {
	if e, ok := r.identity.FindBy(t, field, value); ok {
		return e, nil
	}
	found, err := r.storage.FindByField(ctx, t, field, value)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding %s by %s: %w", t.Name, field, err)
	}
	return r.identity.Remember(found), nil
}

func (r *Resolver) build(t *types.EntityType, data map[string]any) (*types.Entity, error) {
	e := types.NewEntity(t)
	e.Fill(data)
	if key, ok := keyOf(t, data); ok {
		e.SetKey(key)
	} else {
		e.SetKey(r.keys.Generate(t))
	}
	if err := r.identity.Put(e); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadRelation returns the current value of e's relation name: *Entity or
// nil for to-one kinds, []*Entity for to-many kinds. The value is cached on
// e. A new entity has no stored relations, so storage is not queried.
func (r *Resolver) LoadRelation(ctx context.Context, e *types.Entity, name string) (any, error) {
	if v, ok := e.Relation(name); ok {
		return v, nil
	}
	rel, ok := e.Type().Relation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s::%s", types.ErrUnknownRelation, e.Type().Name, name)
	}

	var loaded []*types.Entity
	if e.Exists() {
		found, err := r.storage.LoadRelation(ctx, e, name)
		if err != nil {
			return nil, fmt.Errorf("loading %s::%s: %w", e.Hash(), name, err)
		}
		loaded = make([]*types.Entity, len(found))
		for i, f := range found {
			c := r.identity.Remember(f)
			if c != f && f.Pivot() != nil {
				c.SetPivot(f.Pivot())
			}
			loaded[i] = c
		}
	}

	var value any
	if rel.Kind.IsToMany() {
		if loaded == nil {
			loaded = []*types.Entity{}
		}
		value = loaded
	} else {
		var one *types.Entity
		if len(loaded) > 0 {
			one = loaded[0]
		}
		value = one
	}
	e.SetRelation(name, value)
	return value, nil
}

// LoadOne is LoadRelation for to-one relations.
func (r *Resolver) LoadOne(ctx context.Context, e *types.Entity, name string) (*types.Entity, error) {
	v, err := r.LoadRelation(ctx, e, name)
	if err != nil {
		return nil, err
	}
	one, _ := v.(*types.Entity)
	return one, nil
}

// LoadMany is LoadRelation for to-many relations.
func (r *Resolver) LoadMany(ctx context.Context, e *types.Entity, name string) ([]*types.Entity, error) {
	v, err := r.LoadRelation(ctx, e, name)
	if err != nil {
		return nil, err
	}
	many, _ := v.([]*types.Entity)
	return many, nil
}

func keyOf(t *types.EntityType, data map[string]any) (any, bool) {
	key, ok := data[t.KeyName()]
	if !ok || types.KeyString(key) == "" {
		return nil, false
	}
	return key, true
}
