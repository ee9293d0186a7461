package types

import (
	"strconv"

	"github.com/spf13/cast"
)

// Entity is the in-memory handle for one conceptual record. Handles are
// shared by pointer: every component that touches a record during a fill
// session holds the same *Entity, so a mutation through any reference is
// visible to all of them.
type Entity struct {
	typ       *EntityType
	attrs     map[string]any
	relations map[string]any
	exists    bool
	pivot     map[string]any
	deps      []*Entity
}

// NewEntity returns an empty, not yet persisted handle of type t.
func NewEntity(t *EntityType) *Entity {
	return &Entity{
		typ:       t,
		attrs:     make(map[string]any),
		relations: make(map[string]any),
	}
}

// LoadedEntity returns a handle for a record read from storage.
func LoadedEntity(t *EntityType, attrs map[string]any) *Entity {
	e := NewEntity(t)
	for k, v := range attrs {
		e.attrs[k] = v
	}
	e.exists = true
	return e
}

// Type returns the entity type.
func (e *Entity) Type() *EntityType { return e.typ }

// Key returns the primary key value, or nil when none is assigned.
func (e *Entity) Key() any { return e.attrs[e.typ.KeyName()] }

// SetKey assigns the primary key value.
func (e *Entity) SetKey(v any) { e.attrs[e.typ.KeyName()] = v }

// HasKey reports whether a non-empty primary key is assigned.
func (e *Entity) HasKey() bool { return KeyString(e.Key()) != "" }

// Get returns the attribute value for field.
func (e *Entity) Get(field string) any { return e.attrs[field] }

// Set assigns an attribute without fillable checks. Relation fillers use it
// for foreign keys and discriminators.
func (e *Entity) Set(field string, v any) { e.attrs[field] = v }

// Has reports whether field has been assigned, even to nil.
func (e *Entity) Has(field string) bool {
	_, ok := e.attrs[field]
	return ok
}

// Attributes returns a copy of the attribute map.
func (e *Entity) Attributes() map[string]any {
	out := make(map[string]any, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

// Fill assigns every key of data that is fillable on the entity type.
// Keys outside the fillable set are never written, and the primary key is
// left alone; use SetKey for that.
func (e *Entity) Fill(data map[string]any) {
	key := e.typ.KeyName()
	for k, v := range data {
		if k != key && e.typ.IsFillable(k) {
			e.attrs[k] = v
		}
	}
}

// Exists reports whether the record is known to be persisted.
func (e *Entity) Exists() bool { return e.exists }

// MarkExists sets the persisted flag.
func (e *Entity) MarkExists(v bool) { e.exists = v }

// Relation returns the cached value for a relation: *Entity, []*Entity or
// nil. The second result is false when nothing is cached.
func (e *Entity) Relation(name string) (any, bool) {
	v, ok := e.relations[name]
	return v, ok
}

// RelationLoaded reports whether a value is cached for name.
func (e *Entity) RelationLoaded(name string) bool {
	_, ok := e.relations[name]
	return ok
}

// SetRelation caches a relation value.
func (e *Entity) SetRelation(name string, v any) {
	e.relations[name] = v
}

// Relations returns a copy of the relation cache.
func (e *Entity) Relations() map[string]any {
	out := make(map[string]any, len(e.relations))
	for k, v := range e.relations {
		out[k] = v
	}
	return out
}

// Pivot returns the join row that attached this entity in its most recently
// filled or loaded many-to-many relation.
func (e *Entity) Pivot() map[string]any { return e.pivot }

// SetPivot records the join row for this entity.
func (e *Entity) SetPivot(row map[string]any) { e.pivot = row }

// DependsOn records that e references other through a foreign key, so other
// must be written first.
func (e *Entity) DependsOn(other *Entity) {
	if other == nil || other == e {
		return
	}
	for _, d := range e.deps {
		if d == other {
			return
		}
	}
	e.deps = append(e.deps, other)
}

// Dependencies returns the entities e references through foreign keys.
func (e *Entity) Dependencies() []*Entity { return e.deps }

// Hash returns the identity map key "{Type}#{key}", or "" when the entity
// has no key yet.
func (e *Entity) Hash() string {
	return HashOf(e.typ, e.Key())
}

// Is reports whether e and other denote the same record.
func (e *Entity) Is(other *Entity) bool {
	if e == nil || other == nil {
		return false
	}
	if e == other {
		return true
	}
	h := e.Hash()
	return h != "" && h == other.Hash()
}

// HashOf returns the identity map key for a (type, key) pair, or "" when key
// is empty.
func HashOf(t *EntityType, key any) string {
	k := KeyString(key)
	if k == "" {
		return ""
	}
	return t.Name + "#" + k
}

// KeyString normalizes a key value to its string form so that the same key
// decoded from JSON (float64), read from SQLite (int64) or given as a string
// compares equal.
func KeyString(key any) string {
	switch v := key.(type) {
	case nil:
		return ""
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
	case []byte:
		return string(v)
	}
	s, err := cast.ToStringE(key)
	if err != nil {
		return ""
	}
	return s
}
