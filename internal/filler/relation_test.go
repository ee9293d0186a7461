package filler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// seedBlog stores user u1 with posts p1 and p2, and user u2 with none.
func seedBlog(e *env) {
	e.fill("User", map[string]any{
		"id":   "u1",
		"name": "Ada",
		"posts": []any{
			map[string]any{"id": "p1", "title": "One"},
			map[string]any{"id": "p2", "title": "Two"},
		},
	})
	e.fill("User", map[string]any{"id": "u2", "name": "Grace"})
}

func TestHasManyReplacesCollection(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)

	e.fill("User", map[string]any{
		"id": "u1",
		"posts": []any{
			map[string]any{"id": "p2", "title": "Two, revised"},
			map[string]any{"id": "p3", "title": "Three"},
		},
	})

	assert.ElementsMatch(t, []string{"p2", "p3"}, e.column("SELECT id FROM posts WHERE user_id = 'u1'"))
	assert.Equal(t, 0, e.count("SELECT COUNT(*) FROM posts WHERE id = 'p1'"))
	assert.Equal(t, []string{"Two, revised"}, e.column("SELECT title FROM posts WHERE id = 'p2'"))
}

func TestToManyNilIsNoOpAndEmptyListClears(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)

	e.fill("User", map[string]any{"id": "u1", "posts": nil})
	assert.Equal(t, 2, e.count("SELECT COUNT(*) FROM posts WHERE user_id = 'u1'"))

	e.fill("User", map[string]any{"id": "u1", "posts": []any{}})
	assert.Equal(t, 0, e.count("SELECT COUNT(*) FROM posts WHERE user_id = 'u1'"))
}

func TestToOneNilClears(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)
	e.fill("User", map[string]any{"id": "u1", "profile": map[string]any{"bio": "old"}})
	require.Equal(t, 1, e.count("SELECT COUNT(*) FROM profiles"))

	e.fill("Post", map[string]any{"id": "p1", "user": nil})
	assert.Equal(t, []string{""}, e.column("SELECT user_id FROM posts WHERE id = 'p1'"))

	e.fill("User", map[string]any{"id": "u1", "profile": nil})
	assert.Equal(t, 0, e.count("SELECT COUNT(*) FROM profiles"))
}

func TestHasOneReplacesStaleRecord(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)
	first := e.fill("User", map[string]any{"id": "u1", "profile": map[string]any{"bio": "old"}})
	old, _ := first.Relation("profile")

	e.fill("User", map[string]any{"id": "u1", "profile": map[string]any{"bio": "new"}})
	assert.Equal(t, []string{"new"}, e.column("SELECT bio FROM profiles WHERE user_id = 'u1'"))
	assert.Equal(t, 0, e.count("SELECT COUNT(*) FROM profiles WHERE id = ?", old.(*types.Entity).Key()))

	// Filling the same identity keeps the record.
	e.fill("User", map[string]any{"id": "u1", "profile": map[string]any{"id": "pr1", "bio": "kept"}})
	e.fill("User", map[string]any{"id": "u1", "profile": map[string]any{"id": "pr1", "bio": "kept again"}})
	assert.Equal(t, []string{"kept again"}, e.column("SELECT bio FROM profiles WHERE user_id = 'u1'"))
}

func TestBelongsToSetsForeignKey(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)

	post := e.fill("Post", map[string]any{"id": "p1", "user": map[string]any{"id": "u2"}})
	assert.Equal(t, "u2", post.Get("user_id"))
	assert.Equal(t, []string{"u2"}, e.column("SELECT user_id FROM posts WHERE id = 'p1'"))
}

func TestMovedChildSurvives(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)
	f := e.session()
	ctx := context.Background()

	_, err := f.Fill(ctx, "User", map[string]any{
		"id":    "u1",
		"posts": []any{map[string]any{"id": "p2"}},
	})
	require.NoError(t, err)
	_, err = f.Fill(ctx, "User", map[string]any{
		"id":    "u2",
		"posts": []any{map[string]any{"id": "p1"}},
	})
	require.NoError(t, err)
	require.NoError(t, f.Flush(ctx))

	assert.Equal(t, []string{"u2"}, e.column("SELECT user_id FROM posts WHERE id = 'p1'"))
	assert.Equal(t, []string{"u1"}, e.column("SELECT user_id FROM posts WHERE id = 'p2'"))
}

func TestMappingErrors(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		data     map[string]any
		relation string
	}{
		{
			name:     "object for has_many",
			typeName: "User",
			data:     map[string]any{"name": "A", "posts": map[string]any{"title": "x"}},
			relation: "posts",
		},
		{
			name:     "list for belongs_to",
			typeName: "Post",
			data:     map[string]any{"title": "x", "user": []any{map[string]any{"name": "A"}}},
			relation: "user",
		},
		{
			name:     "scalar item in belongs_to_many",
			typeName: "Post",
			data:     map[string]any{"title": "x", "tags": []any{"go"}},
			relation: "tags",
		},
		{
			name:     "list for pivot",
			typeName: "Post",
			data:     map[string]any{"title": "x", "tags": []any{map[string]any{"name": "go", "pivot": []any{}}}},
			relation: "tags",
		},
		{
			name:     "morph_to without discriminator",
			typeName: "Comment",
			data:     map[string]any{"content": "x", "commentable": map[string]any{"id": "p1"}},
			relation: "commentable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.session().Fill(context.Background(), tt.typeName, tt.data)
			require.ErrorIs(t, err, types.ErrMapping)

			var relErr *types.RelationError
			require.True(t, errors.As(err, &relErr))
			assert.Equal(t, tt.relation, relErr.Relation)
		})
	}
}

func TestMorphToFollowsDiscriminator(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)
	f := e.session()
	ctx := context.Background()

	typ, err := e.cat.Type("Comment")
	require.NoError(t, err)
	comment := types.NewEntity(typ)
	comment.Set("commentable_type", "Post")

	_, err = f.FillEntity(ctx, comment, map[string]any{
		"content":     "nice",
		"commentable": map[string]any{"id": "p2"},
	})
	require.NoError(t, err)
	require.NoError(t, f.Flush(ctx))

	assert.Equal(t, []string{"p2"}, e.column("SELECT commentable_id FROM comments"))
	assert.Equal(t, []string{"Post"}, e.column("SELECT commentable_type FROM comments"))

	target, _ := comment.Relation("commentable")
	assert.Equal(t, "Two", target.(*types.Entity).Get("title"))
}

func TestMorphToReadsDiscriminatorFromData(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		wantType string
		wantID   string
	}{
		{
			name: "parent data",
			data: map[string]any{
				"content":          "nice",
				"commentable_type": "Post",
				"commentable":      map[string]any{"id": "p1"},
			},
			wantType: "Post",
			wantID:   "p1",
		},
		{
			name: "related data",
			data: map[string]any{
				"content":     "welcome",
				"commentable": map[string]any{"id": "u2", "commentable_type": "User"},
			},
			wantType: "User",
			wantID:   "u2",
		},
		{
			name: "related data wins",
			data: map[string]any{
				"content":          "moved",
				"commentable_type": "Post",
				"commentable":      map[string]any{"id": "u1", "commentable_type": "User"},
			},
			wantType: "User",
			wantID:   "u1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			seedBlog(e)

			comment := e.fill("Comment", tt.data)
			assert.Equal(t, tt.wantType, comment.Get("commentable_type"))
			assert.Equal(t, []string{tt.wantType}, e.column("SELECT commentable_type FROM comments"))
			assert.Equal(t, []string{tt.wantID}, e.column("SELECT commentable_id FROM comments"))

			target, _ := comment.Relation("commentable")
			assert.Equal(t, tt.wantType, target.(*types.Entity).Type().Name)
		})
	}
}

func TestMorphToUnknownDiscriminator(t *testing.T) {
	e := newEnv(t)
	_, err := e.session().Fill(context.Background(), "Comment", map[string]any{
		"content":     "x",
		"commentable": map[string]any{"id": "p1", "commentable_type": "Planet"},
	})
	assert.ErrorIs(t, err, types.ErrUnknownType)
}

func TestBelongsToManyReplacesJoinRows(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)

	post := e.fill("Post", map[string]any{
		"id": "p1",
		"tags": []any{
			map[string]any{"id": "t1", "name": "go"},
			map[string]any{"id": "t2", "name": "sql", "pivot": map[string]any{"status": "draft"}},
		},
	})
	tags, _ := post.Relation("tags")
	require.Len(t, tags, 2)
	assert.Equal(t, "draft", tags.([]*types.Entity)[1].Pivot()["status"])
	assert.Equal(t, 2, e.count("SELECT COUNT(*) FROM post_tag WHERE post_id = 'p1'"))

	e.fill("Post", map[string]any{
		"id":   "p1",
		"tags": []any{map[string]any{"id": "t2", "pivot": map[string]any{"status": "live"}}},
	})
	assert.Equal(t, []string{"t2"}, e.column("SELECT tag_id FROM post_tag WHERE post_id = 'p1'"))
	assert.Equal(t, []string{"live"}, e.column("SELECT status FROM post_tag WHERE post_id = 'p1'"))
	// Detaching leaves the related record alone.
	assert.Equal(t, 2, e.count("SELECT COUNT(*) FROM tags"))

	loaded, err := e.store.LoadRelation(context.Background(), types.LoadedEntity(post.Type(), map[string]any{"id": "p1"}), "tags")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "live", loaded[0].Pivot()["status"])
}

func TestPolymorphicJoinRowsAreScoped(t *testing.T) {
	e := newEnv(t)
	seedBlog(e)

	category := e.fill("Category", map[string]any{
		"id":    "c1",
		"name":  "news",
		"posts": []any{map[string]any{"id": "p1"}},
		"users": []any{map[string]any{"id": "u1"}},
	})
	assert.Equal(t, []string{"Post", "User"},
		e.column("SELECT categorizable_type FROM categorizables WHERE category_id = 'c1' ORDER BY categorizable_type"))

	e.fill("Post", map[string]any{
		"id":         "p2",
		"categories": []any{map[string]any{"id": "c1"}},
	})
	assert.Equal(t, 3, e.count("SELECT COUNT(*) FROM categorizables"))

	// Clearing the posts of c1 keeps its users.
	e.fill("Category", map[string]any{"id": category.Key(), "posts": []any{}})
	assert.Equal(t, []string{"User"}, e.column("SELECT categorizable_type FROM categorizables WHERE category_id = 'c1'"))

	loaded, err := e.store.LoadRelation(context.Background(), types.LoadedEntity(category.Type(), map[string]any{"id": "c1"}), "users")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "u1", loaded[0].Key())
}

func TestHasManyThroughWiresIntermediate(t *testing.T) {
	e := newEnv(t)

	country := e.fill("Country", map[string]any{
		"id":   "nl",
		"name": "Netherlands",
		"shops": []any{
			map[string]any{"id": "s1", "name": "Bakery", "through": map[string]any{"id": "ams", "name": "Amsterdam"}},
		},
	})
	assert.Equal(t, []string{"nl"}, e.column("SELECT country_id FROM cities WHERE id = 'ams'"))
	assert.Equal(t, []string{"ams"}, e.column("SELECT city_id FROM shops WHERE id = 's1'"))

	// Items may name a stored intermediate by key instead.
	e.fill("Country", map[string]any{
		"id":    country.Key(),
		"shops": []any{map[string]any{"id": "s2", "name": "Florist", "city_id": "ams"}},
	})
	assert.Equal(t, []string{"s2"}, e.column("SELECT id FROM shops"))
	assert.Equal(t, []string{"ams"}, e.column("SELECT city_id FROM shops WHERE id = 's2'"))

	_, err := e.session().Fill(context.Background(), "Country", map[string]any{
		"id":    "nl",
		"shops": []any{map[string]any{"name": "Ghost", "city_id": "atlantis"}},
	})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestHasOneThroughReplacesFarRecord(t *testing.T) {
	e := newEnv(t)
	e.fill("Country", map[string]any{
		"id":        "be",
		"name":      "Belgium",
		"firstShop": map[string]any{"id": "s1", "name": "Chocolatier", "through": map[string]any{"id": "bru", "name": "Brussels"}},
	})
	require.Equal(t, []string{"bru"}, e.column("SELECT city_id FROM shops WHERE id = 's1'"))

	e.fill("Country", map[string]any{
		"id":        "be",
		"firstShop": map[string]any{"id": "s2", "name": "Waffles", "city_id": "bru"},
	})
	assert.Equal(t, []string{"s2"}, e.column("SELECT id FROM shops"))

	// nil leaves the relation alone.
	e.fill("Country", map[string]any{"id": "be", "firstShop": nil})
	assert.Equal(t, []string{"s2"}, e.column("SELECT id FROM shops"))
}
