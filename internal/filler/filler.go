// Package filler materializes entity graphs from nested data trees. A Filler
// resolves each node to one handle per identity, dispatches relation keys to
// relation fillers and queues every write in a unit of work that Flush
// applies in one transaction.
package filler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/graphfill/internal/identity"
	"github.com/mesh-intelligence/graphfill/internal/keygen"
	"github.com/mesh-intelligence/graphfill/internal/resolver"
	"github.com/mesh-intelligence/graphfill/internal/uow"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Option configures a Filler.
type Option func(*Filler)

// WithLogger sets the logger shared by the filler, its resolver and its unit
// of work. The default is the global pingcap logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Filler) { f.logger = l }
}

// WithKeyGenerator sets the generator for new entity and join-row keys. The
// default is keygen.UUID.
func WithKeyGenerator(k types.KeyGenerator) Option {
	return func(f *Filler) { f.keys = k }
}

// WithClock sets the time source for join-row timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Filler) { f.now = now }
}

// WithRelationFiller registers c for kind, replacing the built-in filler.
func WithRelationFiller(kind types.RelationKind, c Constructor) Option {
	return func(f *Filler) { f.custom = append(f.custom, registration{kind, c}) }
}

type registration struct {
	kind types.RelationKind
	c    Constructor
}

// Filler is one fill session. It is not safe for concurrent use.
type Filler struct {
	catalog  types.Catalog
	identity *identity.Map
	resolver *resolver.Resolver
	uow      *uow.UnitOfWork
	factory  *Factory
	keys     types.KeyGenerator
	logger   *zap.Logger
	now      func() time.Time
	custom   []registration
}

// New returns a filler reading from and flushing to storage, with entity
// types and relations described by cat.
func New(storage types.Storage, cat types.Catalog, opts ...Option) *Filler {
	f := &Filler{
		catalog:  cat,
		identity: identity.New(),
		keys:     keygen.UUID{},
		logger:   log.L(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.resolver = resolver.New(storage, f.identity, f.keys, resolver.WithLogger(f.logger))
	f.uow = uow.New(storage, f.identity, uow.WithLogger(f.logger))
	f.factory = NewFactory(f)
	for _, r := range f.custom {
		f.factory.Register(r.kind, r.c)
	}
	return f
}

// Catalog returns the catalog the filler resolves types and relations with.
func (f *Filler) Catalog() types.Catalog { return f.catalog }

// Resolver returns the session resolver.
func (f *Filler) Resolver() *resolver.Resolver { return f.resolver }

// UnitOfWork returns the session unit of work.
func (f *Filler) UnitOfWork() *uow.UnitOfWork { return f.uow }

// Identity returns the session identity map.
func (f *Filler) Identity() *identity.Map { return f.identity }

// Factory returns the relation filler factory.
func (f *Filler) Factory() *Factory { return f.factory }

// Keys returns the key generator.
func (f *Filler) Keys() types.KeyGenerator { return f.keys }

// Logger returns the session logger.
func (f *Filler) Logger() *zap.Logger { return f.logger }

// Fill resolves or creates the entity of type typeName that data describes,
// assigns its fillable fields, fills every relation present in data and
// queues the entity for persist. A nil data map returns nil.
func (f *Filler) Fill(ctx context.Context, typeName string, data map[string]any) (*types.Entity, error) {
	t, err := f.catalog.Type(typeName)
	if err != nil {
		return nil, err
	}
	return f.FillType(ctx, t, data)
}

// FillType is Fill for a type the caller already holds.
func (f *Filler) FillType(ctx context.Context, t *types.EntityType, data map[string]any) (*types.Entity, error) {
	if data == nil {
		return nil, nil
	}
	e, err := f.resolver.Resolve(ctx, t, data)
	if err != nil {
		return nil, err
	}
	return f.apply(ctx, e, data)
}

// FillEntity applies data to e. An e without a key takes the key from data or
// the key generator. e becomes the session handle for its identity; another
// handle already mapped for it is an identity conflict.
func (f *Filler) FillEntity(ctx context.Context, e *types.Entity, data map[string]any) (*types.Entity, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entity", types.ErrInvalidType)
	}
	if !e.HasKey() {
		if key, ok := data[e.Type().KeyName()]; ok && types.KeyString(key) != "" {
			e.SetKey(key)
		} else {
			e.SetKey(f.keys.Generate(e.Type()))
		}
	}
	if err := f.identity.Put(e); err != nil {
		return nil, err
	}
	return f.apply(ctx, e, data)
}

func (f *Filler) apply(ctx context.Context, e *types.Entity, data map[string]any) (*types.Entity, error) {
	t := e.Type()
	e.Fill(data)
	for _, rel := range t.Relations {
		if rel.Kind != types.MorphTo {
			continue
		}
		if v, ok := data[rel.MorphType]; ok {
			e.Set(rel.MorphType, v)
		}
	}

	for _, key := range sortedKeys(data) {
		if key == t.KeyName() || t.IsFillable(key) {
			continue
		}
		name, ok := f.catalog.RelationName(t, key)
		if !ok {
			f.logger.Debug("ignoring data key",
				zap.String("type", t.Name), zap.String("key", key))
			continue
		}
		rf, rel, err := f.RelationFiller(t, name)
		if err != nil {
			return nil, err
		}
		if err := rf.Fill(ctx, e, rel, data[key], name); err != nil {
			return nil, err
		}
	}

	f.uow.Persist(e)
	return e, nil
}

// RelationFiller returns the filler the factory selects for t's relation
// name, with the relation descriptor.
func (f *Filler) RelationFiller(t *types.EntityType, name string) (RelationFiller, *types.Relation, error) {
	rel, err := f.catalog.DescribeRelation(t, name)
	if err != nil {
		return nil, nil, err
	}
	rf, err := f.factory.Create(t, rel)
	if err != nil {
		return nil, nil, err
	}
	return rf, rel, nil
}

// Flush writes every pending change in one transaction.
func (f *Filler) Flush(ctx context.Context) error {
	return f.uow.Flush(ctx)
}

// Clear discards the session's identities and pending changes.
func (f *Filler) Clear() {
	f.identity.Clear()
	f.uow.Clear()
}

// relatedType returns the catalog type rel points at.
func (f *Filler) relatedType(parent *types.EntityType, rel *types.Relation) (*types.EntityType, error) {
	t, err := f.catalog.Type(rel.Related)
	if err != nil {
		return nil, relationErr(parent, rel, err, "")
	}
	return t, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ types.Filler = (*Filler)(nil)
