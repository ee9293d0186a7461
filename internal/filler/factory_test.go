package filler

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/graphfill/internal/catalog"
	"github.com/mesh-intelligence/graphfill/internal/keygen"
	"github.com/mesh-intelligence/graphfill/internal/sqlite"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

func TestFactoryCreate(t *testing.T) {
	e := newEnv(t)
	fa := e.session().Factory()
	owner := &types.EntityType{Name: "Owner"}

	tests := []struct {
		kind types.RelationKind
		want RelationFiller
	}{
		{types.BelongsTo, &belongsTo{}},
		{types.MorphTo, &belongsTo{}},
		{types.HasOne, &hasOne{}},
		{types.MorphOne, &hasOne{}},
		{types.HasMany, &hasMany{}},
		{types.MorphMany, &hasMany{}},
		{types.BelongsToMany, &belongsToMany{}},
		{types.MorphToMany, &belongsToMany{}},
		{types.MorphedByMany, &belongsToMany{}},
		{types.HasOneThrough, &hasOneThrough{}},
		{types.HasManyThrough, &hasManyThrough{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rf, err := fa.Create(owner, &types.Relation{Name: "r", Kind: tt.kind})
			require.NoError(t, err)
			assert.IsType(t, tt.want, rf)
		})
	}
}

func TestFactoryCachesPerKind(t *testing.T) {
	e := newEnv(t)
	fa := e.session().Factory()
	owner := &types.EntityType{Name: "Owner"}

	a, err := fa.Create(owner, &types.Relation{Name: "a", Kind: types.HasMany})
	require.NoError(t, err)
	b, err := fa.Create(owner, &types.Relation{Name: "b", Kind: types.MorphMany})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestFactoryMissingFiller(t *testing.T) {
	e := newEnv(t)
	fa := e.session().Factory()
	owner := &types.EntityType{Name: "Owner"}

	_, err := fa.Create(owner, &types.Relation{Name: "links", Kind: "graph_edge"})
	require.ErrorIs(t, err, types.ErrNoRelationFiller)
	var relErr *types.RelationError
	require.True(t, errors.As(err, &relErr))
	assert.Equal(t, "Owner", relErr.Type)
	assert.Equal(t, "links", relErr.Relation)
	assert.Equal(t, types.RelationKind("graph_edge"), relErr.Kind)

	// Removing the general filler leaves its variants uncovered too.
	fa.Register(types.BelongsTo, nil)
	_, err = fa.Create(owner, &types.Relation{Name: "target", Kind: types.MorphTo})
	assert.ErrorIs(t, err, types.ErrNoRelationFiller)
	assert.NotContains(t, fa.Registered(), types.BelongsTo)
}

func TestCustomRelationFiller(t *testing.T) {
	e := newEnv(t)
	var seen []string
	counting := func(f *Filler) RelationFiller {
		return RelationFillerFunc(func(_ context.Context, parent *types.Entity, rel *types.Relation, _ any, name string) error {
			seen = append(seen, parent.Type().Name+"."+name+":"+string(rel.Kind))
			return nil
		})
	}

	f := e.session(WithRelationFiller(types.HasMany, counting))
	_, err := f.Fill(context.Background(), "Post", map[string]any{
		"title":    "Hello",
		"comments": []any{map[string]any{"content": "hi"}},
		"user":     map[string]any{"name": "Ada", "posts": []any{}},
	})
	require.NoError(t, err)

	// morph_many falls back to the has_many registration.
	assert.Equal(t, []string{"Post.comments:morph_many", "User.posts:has_many"}, seen)
	assert.Equal(t, 0, f.UnitOfWork().Pending().Destroys)
}

func TestRegisterReplacesCachedInstance(t *testing.T) {
	e := newEnv(t)
	f := e.session()
	fa := f.Factory()
	owner := &types.EntityType{Name: "Owner"}
	rel := &types.Relation{Name: "r", Kind: types.HasOne}

	before, err := fa.Create(owner, rel)
	require.NoError(t, err)

	fa.Register(types.HasOne, func(*Filler) RelationFiller { return &hasMany{f: f} })
	after, err := fa.Create(owner, rel)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.IsType(t, &hasMany{}, after)
}

const graphCatalog = `
types:
  Node:
    fillable: [name]
    relations:
      next: {kind: graph_edge, related: Node, foreign_key: next_id}
`

const graphSchema = `
CREATE TABLE nodes (
    id TEXT PRIMARY KEY,
    name TEXT,
    next_id TEXT REFERENCES nodes(id)
);
`

// edgeFiller points the parent's foreign key at the node data describes.
func edgeFiller(f *Filler) RelationFiller {
	return RelationFillerFunc(func(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
		obj, ok := data.(map[string]any)
		if !ok {
			return &types.RelationError{Type: parent.Type().Name, Relation: name, Kind: rel.Kind, Err: types.ErrMapping}
		}
		t, err := f.Catalog().Type(rel.Related)
		if err != nil {
			return err
		}
		next, err := f.FillType(ctx, t, obj)
		if err != nil {
			return err
		}
		parent.Set(rel.ForeignKey, next.Key())
		parent.DependsOn(next)
		parent.SetRelation(name, next)
		return nil
	})
}

func TestFillThroughCustomKind(t *testing.T) {
	cat, err := catalog.Parse([]byte(graphCatalog))
	require.NoError(t, err)

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), sqlite.DBFile)+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := sqlite.NewBackend(cat, sqlite.WithLogger(zap.NewNop()))
	require.NoError(t, store.Open(db))
	require.NoError(t, store.ExecSchema(context.Background(), graphSchema))

	ctx := context.Background()
	f := New(store, cat,
		WithLogger(zap.NewNop()),
		WithKeyGenerator(keygen.NewSequence()),
		WithRelationFiller("graph_edge", edgeFiller))

	head, err := f.Fill(ctx, "Node", map[string]any{
		"id":   "a",
		"name": "head",
		"next": map[string]any{"id": "b", "name": "middle", "next": map[string]any{"id": "c", "name": "tail"}},
	})
	require.NoError(t, err)
	require.NoError(t, f.Flush(ctx))

	assert.Equal(t, "b", head.Get("next_id"))
	var nextOfB sql.NullString
	require.NoError(t, db.QueryRow("SELECT next_id FROM nodes WHERE id = 'b'").Scan(&nextOfB))
	assert.Equal(t, "c", nextOfB.String)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&n))
	assert.Equal(t, 3, n)
}
