package filler

import (
	"context"
	"time"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// belongsToMany fills relations stored in a join table: belongs_to_many,
// morph_to_many and morphed_by_many. The parent's join rows are replaced at
// flush time by the rows built from data.
type belongsToMany struct {
	f *Filler
}

func newBelongsToMany(f *Filler) RelationFiller { return &belongsToMany{f: f} }

func (b *belongsToMany) Fill(ctx context.Context, parent *types.Entity, rel *types.Relation, data any, name string) error {
	if data == nil {
		return nil
	}
	items, err := asList(parent.Type(), rel, data)
	if err != nil {
		return err
	}
	t, err := b.f.relatedType(parent.Type(), rel)
	if err != nil {
		return err
	}

	joinType := &types.EntityType{Name: rel.JoinTable, Table: rel.JoinTable}
	related := make([]*types.Entity, 0, len(items))
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		e, err := b.f.resolver.FindByKey(ctx, t, item)
		if err != nil {
			return err
		}
		if e == nil {
			if e, err = b.f.FillType(ctx, t, item); err != nil {
				return err
			}
		}

		row, err := b.joinRow(parent, rel, e, item[PivotKey])
		if err != nil {
			return err
		}
		if rel.HasJoinKey() {
			row[rel.JoinKey] = b.f.keys.Generate(joinType)
		}
		e.SetPivot(row)
		related = append(related, e)
		rows = append(rows, row)
	}

	where := map[string]any{rel.ForeignPivotKey: parent.Get(rel.LocalKey)}
	if morph, ok := pivotMorph(parent.Type(), t, rel); ok {
		where[rel.MorphType] = morph
	}
	b.f.uow.OnFlush(func(ctx context.Context, tx types.Tx) error {
		if err := tx.Detach(ctx, rel.JoinTable, where); err != nil {
			return err
		}
		now := b.f.now().UTC().Format(time.RFC3339)
		for _, row := range rows {
			if rel.PivotTimestamps {
				row[types.CreatedAtField] = now
				row[types.UpdatedAtField] = now
			}
			if err := tx.Attach(ctx, rel.JoinTable, row); err != nil {
				return err
			}
		}
		return nil
	})

	parent.SetRelation(name, related)
	return nil
}

// joinRow builds the join row linking parent to related. Extra pivot
// attributes come from the item's pivot object, limited to PivotFields when
// the relation declares them.
func (b *belongsToMany) joinRow(parent *types.Entity, rel *types.Relation, related *types.Entity, pivot any) (map[string]any, error) {
	row := make(map[string]any)
	attrs, err := asObject(parent.Type(), rel, pivot)
	if err != nil {
		return nil, err
	}
	for k, v := range attrs {
		if len(rel.PivotFields) > 0 && !contains(rel.PivotFields, k) {
			continue
		}
		row[k] = v
	}

	row[rel.ForeignPivotKey] = parent.Get(rel.LocalKey)
	row[rel.RelatedPivotKey] = related.Get(rel.RelatedKey)
	if morph, ok := pivotMorph(parent.Type(), related.Type(), rel); ok {
		row[rel.MorphType] = morph
	}
	return row, nil
}

// pivotMorph returns the discriminator a polymorphic join row carries: the
// parent's morph name for morph_to_many, the related type's for
// morphed_by_many.
func pivotMorph(parent, related *types.EntityType, rel *types.Relation) (string, bool) {
	switch rel.Kind {
	case types.MorphToMany:
		return parent.MorphClass(), true
	case types.MorphedByMany:
		return related.MorphClass(), true
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
