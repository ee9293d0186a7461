package filler

import (
	"context"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// hasMany fills has_many and morph_many relations. The filled list replaces
// the stored collection: existing members missing from it are destroyed.
type hasMany struct {
	f *Filler
}

func newHasMany(f *Filler) RelationFiller { return &hasMany{f: f} }

func (h *hasMany) Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
	// nil leaves the collection as it is; an empty list clears it.
	if data == nil {
		return nil
	}
	items, err := asList(parent.Type(), rel, data)
	if err != nil {
		return err
	}
	t, err := h.f.relatedType(parent.Type(), rel)
	if err != nil {
		return err
	}

	existing, err := h.f.resolver.LoadMany(ctx, parent, name)
	if err != nil {
		return err
	}

	filled := make([]*types.Entity, 0, len(items))
	for _, item := range items {
		child, err := h.f.FillType(ctx, t, item)
		if err != nil {
			return err
		}
		wireChild(parent, rel, child)
		h.f.uow.Persist(child)
		filled = append(filled, child)
	}

	for _, e := range existing {
		if !containsIdentity(filled, e) {
			h.f.uow.Destroy(e)
		}
	}
	parent.SetRelation(name, filled)
	return nil
}
