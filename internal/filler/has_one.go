package filler

import (
	"context"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// hasOne fills has_one and morph_one relations.
type hasOne struct {
	f *Filler
}

func newHasOne(f *Filler) RelationFiller { return &hasOne{f: f} }

func (h *hasOne) Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
	obj, err := asObject(parent.Type(), rel, data)
	if err != nil {
		return err
	}
	t, err := h.f.relatedType(parent.Type(), rel)
	if err != nil {
		return err
	}

	existing, err := h.f.resolver.LoadOne(ctx, parent, name)
	if err != nil {
		return err
	}
	related, err := h.f.FillType(ctx, t, obj)
	if err != nil {
		return err
	}

	if existing != nil && !existing.Is(related) {
		h.f.uow.Destroy(existing)
	}
	if related != nil {
		wireChild(parent, rel, related)
		h.f.uow.Persist(related)
	}
	parent.SetRelation(name, related)
	return nil
}

// wireChild points child's foreign key, and discriminator for the morph
// kinds, at parent.
func wireChild(parent *types.Entity, rel *types.Relation, child *types.Entity) {
	child.Set(rel.ForeignKey, parent.Get(rel.LocalKey))
	if rel.Kind.IsPolymorphic() {
		child.Set(rel.MorphType, parent.Type().MorphClass())
	}
	child.DependsOn(parent)
}
