package filler

import (
	"context"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// through holds what has_one_through and has_many_through share: finding
// the intermediate entity of an item and wiring parent -> intermediate ->
// far entity.
type through struct {
	f *Filler
}

func (th through) endpoints(parent *types.EntityType, rel *types.Relation) (mid, far *types.EntityType, err error) {
	if mid, err = th.f.catalog.Type(rel.Through); err != nil {
		return nil, nil, relationErr(parent, rel, err, "")
	}
	if far, err = th.f.relatedType(parent, rel); err != nil {
		return nil, nil, err
	}
	return mid, far, nil
}

// intermediate returns the entity an item reaches its parent through: the
// item's "through" object when present, otherwise the stored entity its
// second key names. It returns nil when the item names neither.
func (th through) intermediate(ctx context.Context, parent *types.Entity, rel *types.Relation, mid *types.EntityType, item map[string]any) (*types.Entity, error) {
	obj, err := asObject(parent.Type(), rel, item[ThroughKey])
	if err != nil {
		return nil, err
	}
	if obj != nil {
		return th.f.FillType(ctx, mid, obj)
	}

	ref, ok := item[rel.SecondKey]
	if !ok || types.KeyString(ref) == "" {
		return nil, nil
	}
	e, err := th.f.resolver.FindByField(ctx, mid, rel.SecondLocalKey, ref)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, relationErr(parent.Type(), rel, types.ErrNotFound,
			mid.Name+" "+rel.SecondLocalKey+" = "+types.KeyString(ref))
	}
	return e, nil
}

// wire points mid at parent and far at mid, and queues both.
func (th through) wire(parent *types.Entity, rel *types.Relation, mid, far *types.Entity) {
	mid.Set(rel.FirstKey, parent.Get(rel.LocalKey))
	mid.DependsOn(parent)
	th.f.uow.Persist(mid)

	far.Set(rel.SecondKey, mid.Get(rel.SecondLocalKey))
	far.DependsOn(mid)
	th.f.uow.Persist(far)
}

// hasOneThrough fills has_one_through relations.
type hasOneThrough struct {
	through
}

func newHasOneThrough(f *Filler) RelationFiller { return &hasOneThrough{through{f: f}} }

func (h *hasOneThrough) Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
	if data == nil {
		return nil
	}
	obj, err := asObject(parent.Type(), rel, data)
	if err != nil {
		return err
	}
	midType, farType, err := h.endpoints(parent.Type(), rel)
	if err != nil {
		return err
	}

	existing, err := h.f.resolver.LoadOne(ctx, parent, name)
	if err != nil {
		return err
	}
	mid, err := h.intermediate(ctx, parent, rel, midType, obj)
	if err != nil {
		return err
	}
	far, err := h.f.FillType(ctx, farType, obj)
	if err != nil {
		return err
	}
	if mid != nil {
		h.wire(parent, rel, mid, far)
	}

	if existing != nil && !existing.Is(far) {
		h.f.uow.Destroy(existing)
	}
	parent.SetRelation(name, far)
	return nil
}

// hasManyThrough fills has_many_through relations. Stored far entities
// missing from the list are destroyed.
type hasManyThrough struct {
	through
}

func newHasManyThrough(f *Filler) RelationFiller { return &hasManyThrough{through{f: f}} }

func (h *hasManyThrough) Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
	if data == nil {
		return nil
	}
	items, err := asList(parent.Type(), rel, data)
	if err != nil {
		return err
	}
	midType, farType, err := h.endpoints(parent.Type(), rel)
	if err != nil {
		return err
	}

	existing, err := h.f.resolver.LoadMany(ctx, parent, name)
	if err != nil {
		return err
	}

	filled := make([]*types.Entity, 0, len(items))
	for _, item := range items {
		mid, err := h.intermediate(ctx, parent, rel, midType, item)
		if err != nil {
			return err
		}
		far, err := h.f.FillType(ctx, farType, item)
		if err != nil {
			return err
		}
		if mid != nil {
			h.wire(parent, rel, mid, far)
		}
		filled = append(filled, far)
	}

	for _, e := range existing {
		if !containsIdentity(filled, e) {
			h.f.uow.Destroy(e)
		}
	}
	parent.SetRelation(name, filled)
	return nil
}
