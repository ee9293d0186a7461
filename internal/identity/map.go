// Package identity keeps one in-memory handle per persisted identity for the
// lifetime of a fill session.
package identity

import (
	"fmt"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Map is a session-scoped identity map keyed by "{Type}#{key}". It is not
// safe for concurrent use; each session owns its own Map.
type Map struct {
	entries map[string]*types.Entity
	tracked map[string]bool
}

// New returns an empty identity map.
func New() *Map {
	return &Map{
		entries: make(map[string]*types.Entity),
		tracked: make(map[string]bool),
	}
}

// Get returns the handle stored under hash.
func (m *Map) Get(hash string) (*types.Entity, bool) {
	if hash == "" {
		return nil, false
	}
	e, ok := m.entries[hash]
	return e, ok
}

// Lookup returns the handle for (t, key).
func (m *Map) Lookup(t *types.EntityType, key any) (*types.Entity, bool) {
	return m.Get(types.HashOf(t, key))
}

// Put stores e under its hash. Storing a different handle for a hash already
// present is an identity conflict; storing the same handle again is a no-op.
func (m *Map) Put(e *types.Entity) error {
	hash := e.Hash()
	if hash == "" {
		return fmt.Errorf("%w: %s", types.ErrMissingKey, e.Type().Name)
	}
	if existing, ok := m.entries[hash]; ok && existing != e {
		return fmt.Errorf("%w: %s already mapped to another handle", types.ErrIdentityConflict, hash)
	}
	m.entries[hash] = e
	return nil
}

// Remember returns the canonical handle for e. When the identity is already
// mapped the existing handle wins and e is discarded; otherwise e becomes
// canonical. Relations cached on e are canonicalized recursively, each
// (entity, relation) pair at most once per session.
func (m *Map) Remember(e *types.Entity) *types.Entity {
	if e == nil {
		return nil
	}
	hash := e.Hash()
	if hash == "" {
		return e
	}
	if existing, ok := m.entries[hash]; ok {
		return existing
	}
	m.entries[hash] = e

	for name, value := range e.Relations() {
		marker := hash + "#" + name
		if m.isTracked(marker) {
			continue
		}
		m.markTracked(marker)

		switch v := value.(type) {
		case *types.Entity:
			e.SetRelation(name, m.Remember(v))
		case []*types.Entity:
			e.SetRelation(name, m.RememberAll(v))
		}
	}
	return e
}

// RememberAll canonicalizes each entity and returns the canonical handles in
// the same order.
func (m *Map) RememberAll(es []*types.Entity) []*types.Entity {
	out := make([]*types.Entity, len(es))
	for i, e := range es {
		out[i] = m.Remember(e)
	}
	return out
}

// FindBy returns a mapped handle of type t whose field equals value, compared
// by normalized string form.
func (m *Map) FindBy(t *types.EntityType, field string, value any) (*types.Entity, bool) {
	want := types.KeyString(value)
	if want == "" {
		return nil, false
	}
	for _, e := range m.entries {
		if e.Type() != t || !e.Has(field) {
			continue
		}
		if types.KeyString(e.Get(field)) == want {
			return e, true
		}
	}
	return nil, false
}

// isTracked reports whether a relation marker has been processed.
func (m *Map) isTracked(marker string) bool { return m.tracked[marker] }

func (m *Map) markTracked(marker string) { m.tracked[marker] = true }

// Forget drops e from the map if it is the mapped handle for its identity.
func (m *Map) Forget(e *types.Entity) {
	hash := e.Hash()
	if existing, ok := m.entries[hash]; ok && existing == e {
		delete(m.entries, hash)
	}
}

// Len returns the number of mapped identities.
func (m *Map) Len() int { return len(m.entries) }

// Clear empties the map and its relation markers.
func (m *Map) Clear() {
	m.entries = make(map[string]*types.Entity)
	m.tracked = make(map[string]bool)
}
