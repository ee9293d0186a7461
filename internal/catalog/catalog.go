// Package catalog holds the registry of entity types and their relation
// descriptors. It answers the fill core's "is this key a relation, and of
// what kind" questions and tolerates snake_case or camelCase input keys.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Catalog is a linked set of entity types. Types are immutable once Link
// succeeds; the catalog may then be shared by concurrent sessions.
type Catalog struct {
	mu     sync.RWMutex
	types  map[string]*types.EntityType
	morphs map[string]*types.EntityType
	linked bool

	// names memoizes RelationName per type: input key -> relation name,
	// "" when the key is not a relation.
	names map[string]map[string]string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		types:  make(map[string]*types.EntityType),
		morphs: make(map[string]*types.EntityType),
		names:  make(map[string]map[string]string),
	}
}

// Register adds an entity type. Call Link after the last Register.
func (c *Catalog) Register(t *types.EntityType) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: name must not be empty", types.ErrInvalidType)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.types[t.Name]; ok {
		return fmt.Errorf("%w: %s registered twice", types.ErrInvalidType, t.Name)
	}
	if t.Relations == nil {
		t.Relations = make(map[string]*types.Relation)
	}
	c.types[t.Name] = t
	c.linked = false
	return nil
}

// Type returns the entity type registered under name.
func (c *Catalog) Type(name string) (*types.EntityType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownType, name)
	}
	return t, nil
}

// MorphType returns the entity type whose discriminator value is morph.
// Type names are accepted as well as morph names.
func (c *Catalog) MorphType(morph string) (*types.EntityType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.morphs[morph]; ok {
		return t, nil
	}
	if t, ok := c.types[morph]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: no type with morph name %q", types.ErrUnknownType, morph)
}

// Types returns every registered type ordered by name.
func (c *Catalog) Types() []*types.EntityType {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*types.EntityType, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tables returns the entity tables followed by the join tables the catalog
// references, each list sorted and free of duplicates.
func (c *Catalog) Tables() []string {
	var entityTables, joinTables []string
	seen := make(map[string]bool)
	for _, t := range c.Types() {
		if !seen[t.Table] {
			seen[t.Table] = true
			entityTables = append(entityTables, t.Table)
		}
	}
	for _, t := range c.Types() {
		for _, r := range t.Relations {
			if r.JoinTable != "" && !seen[r.JoinTable] {
				seen[r.JoinTable] = true
				joinTables = append(joinTables, r.JoinTable)
			}
		}
	}
	sort.Strings(entityTables)
	sort.Strings(joinTables)
	return append(entityTables, joinTables...)
}

// IsRelation reports whether name is a relation of t.
func (c *Catalog) IsRelation(t *types.EntityType, name string) bool {
	_, ok := t.Relation(name)
	return ok
}

// DescribeRelation returns t's relation descriptor for name.
func (c *Catalog) DescribeRelation(t *types.EntityType, name string) (*types.Relation, error) {
	r, ok := t.Relation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s::%s", types.ErrUnknownRelation, t.Name, name)
	}
	return r, nil
}

// RelationName maps an input key to a relation of t: exact match first,
// then the camelCase form of a snake_case key, then the snake_case form of
// a camelCase key.
func (c *Catalog) RelationName(t *types.EntityType, key string) (string, bool) {
	c.mu.RLock()
	name, cached := c.names[t.Name][key]
	c.mu.RUnlock()
	if cached {
		return name, name != ""
	}

	name = ""
	for _, candidate := range []string{key, Camel(key), Snake(key)} {
		if c.IsRelation(t, candidate) {
			name = candidate
			break
		}
	}

	c.mu.Lock()
	if c.names[t.Name] == nil {
		c.names[t.Name] = make(map[string]string)
	}
	c.names[t.Name][key] = name
	c.mu.Unlock()
	return name, name != ""
}

var _ types.Catalog = (*Catalog)(nil)
