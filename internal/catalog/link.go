package catalog

import (
	"fmt"
	"sort"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Link validates every registered type and fills unset relation fields with
// conventional defaults. It must succeed before the catalog is used.
func (c *Catalog) Link() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.morphs = make(map[string]*types.EntityType, len(c.types))
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := c.types[name]
		if t.Table == "" {
			t.Table = Plural(Snake(t.Name))
		}
		if t.PrimaryKey == "" {
			t.PrimaryKey = types.DefaultPrimaryKey
		}
		morph := t.MorphClass()
		if other, ok := c.morphs[morph]; ok {
			return fmt.Errorf("%w: %s and %s share morph name %q", types.ErrInvalidType, other.Name, t.Name, morph)
		}
		c.morphs[morph] = t
	}

	for _, name := range names {
		t := c.types[name]
		relNames := make([]string, 0, len(t.Relations))
		for rn := range t.Relations {
			relNames = append(relNames, rn)
		}
		sort.Strings(relNames)
		for _, rn := range relNames {
			r := t.Relations[rn]
			if r == nil {
				return relationErr(t, rn, "", "descriptor is empty")
			}
			r.Name = rn
			if err := c.linkRelation(t, r); err != nil {
				return err
			}
		}
	}

	c.names = make(map[string]map[string]string)
	c.linked = true
	return nil
}

// Linked reports whether Link has succeeded since the last Register.
func (c *Catalog) Linked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.linked
}

func (c *Catalog) linkRelation(t *types.EntityType, r *types.Relation) error {
	if r.Kind == "" {
		return relationErr(t, r.Name, r.Kind, "kind is required")
	}

	var related *types.EntityType
	if r.Related != "" {
		related = c.types[r.Related]
		if related == nil {
			return relationErr(t, r.Name, r.Kind, fmt.Sprintf("related type %q is not registered", r.Related))
		}
	}
	// Kinds outside the built-in set belong to custom relation fillers and
	// keep their descriptor as written.
	if !r.Kind.Valid() {
		return nil
	}
	if related == nil && r.Kind != types.MorphTo {
		return relationErr(t, r.Name, r.Kind, "related type is required")
	}

	parent := Snake(t.Name)
	if r.Kind.IsPolymorphic() && r.Morph == "" {
		if r.Kind != types.MorphTo {
			return relationErr(t, r.Name, r.Kind, "morph prefix is required")
		}
		r.Morph = Snake(r.Name)
	}

	switch {
	case r.Kind.Is(types.BelongsTo):
		if r.Kind == types.MorphTo {
			setDefault(&r.ForeignKey, r.Morph+"_id")
			setDefault(&r.MorphType, r.Morph+"_type")
		} else {
			setDefault(&r.ForeignKey, Snake(r.Name)+"_id")
			setDefault(&r.OwnerKey, related.KeyName())
		}

	case r.Kind.Is(types.HasOne), r.Kind.Is(types.HasMany):
		if r.Kind.IsPolymorphic() {
			setDefault(&r.ForeignKey, r.Morph+"_id")
			setDefault(&r.MorphType, r.Morph+"_type")
		} else {
			setDefault(&r.ForeignKey, parent+"_id")
		}
		setDefault(&r.LocalKey, t.KeyName())

	case r.Kind.Is(types.BelongsToMany):
		relatedName := Snake(related.Name)
		switch r.Kind {
		case types.BelongsToMany:
			pair := []string{parent, relatedName}
			sort.Strings(pair)
			setDefault(&r.JoinTable, pair[0]+"_"+pair[1])
			setDefault(&r.ForeignPivotKey, parent+"_id")
			setDefault(&r.RelatedPivotKey, relatedName+"_id")
		case types.MorphToMany:
			setDefault(&r.JoinTable, r.Morph+"s")
			setDefault(&r.ForeignPivotKey, r.Morph+"_id")
			setDefault(&r.RelatedPivotKey, relatedName+"_id")
			setDefault(&r.MorphType, r.Morph+"_type")
		case types.MorphedByMany:
			setDefault(&r.JoinTable, r.Morph+"s")
			setDefault(&r.ForeignPivotKey, parent+"_id")
			setDefault(&r.RelatedPivotKey, r.Morph+"_id")
			setDefault(&r.MorphType, r.Morph+"_type")
		}
		setDefault(&r.JoinKey, types.DefaultPrimaryKey)
		setDefault(&r.LocalKey, t.KeyName())
		setDefault(&r.RelatedKey, related.KeyName())

	case r.Kind == types.HasOneThrough, r.Kind == types.HasManyThrough:
		through := c.types[r.Through]
		if through == nil {
			return relationErr(t, r.Name, r.Kind, fmt.Sprintf("through type %q is not registered", r.Through))
		}
		setDefault(&r.FirstKey, parent+"_id")
		setDefault(&r.SecondKey, Snake(through.Name)+"_id")
		setDefault(&r.LocalKey, t.KeyName())
		setDefault(&r.SecondLocalKey, through.KeyName())
	}
	return nil
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}

func relationErr(t *types.EntityType, name string, kind types.RelationKind, reason string) error {
	return &types.RelationError{
		Type:     t.Name,
		Relation: name,
		Kind:     kind,
		Reason:   reason,
		Err:      types.ErrInvalidRelation,
	}
}
