package filler

import (
	"context"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// belongsTo fills relations whose foreign key lives on the parent:
// belongs_to and morph_to.
type belongsTo struct {
	f *Filler
}

func newBelongsTo(f *Filler) RelationFiller { return &belongsTo{f: f} }

func (b *belongsTo) Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
	obj, err := asObject(parent.Type(), rel, data)
	if err != nil {
		return err
	}

	var related *types.Entity
	if obj != nil {
		t, err := b.targetType(parent, rel, obj)
		if err != nil {
			return err
		}
		if related, err = b.f.FillType(ctx, t, obj); err != nil {
			return err
		}
	}

	polymorphic := rel.Kind.IsPolymorphic()
	switch {
	case related == nil:
		parent.Set(rel.ForeignKey, nil)
		if polymorphic {
			parent.Set(rel.MorphType, nil)
		}
	case polymorphic:
		parent.Set(rel.ForeignKey, related.Key())
		parent.Set(rel.MorphType, related.Type().MorphClass())
		parent.DependsOn(related)
	default:
		parent.Set(rel.ForeignKey, related.Get(rel.OwnerKey))
		parent.DependsOn(related)
	}
	parent.SetRelation(name, related)
	return nil
}

// targetType picks the related type. A morph_to relation reads the
// discriminator from the related data first, then from the parent, and
// falls back to the declared type.
func (b *belongsTo) targetType(parent *types.Entity, rel *types.Relation, obj map[string]any) (*types.EntityType, error) {
	if rel.Kind.IsPolymorphic() {
		morph := cast.ToString(obj[rel.MorphType])
		if morph == "" {
			morph = cast.ToString(parent.Get(rel.MorphType))
		}
		if morph != "" {
			t, err := b.f.catalog.MorphType(morph)
			if err != nil {
				return nil, relationErr(parent.Type(), rel, err, "")
			}
			return t, nil
		}
		if rel.Related == "" {
			return nil, mappingErr(parent.Type(), rel, "cannot tell the related type: no discriminator value and no declared type")
		}
	}
	return b.f.relatedType(parent.Type(), rel)
}
