package types

// RelationKind identifies how a relationship wires foreign keys or join rows.
type RelationKind string

const (
	BelongsTo      RelationKind = "belongs_to"       // owning side holds the FK
	MorphTo        RelationKind = "morph_to"         // owning side holds FK and discriminator
	HasOne         RelationKind = "has_one"          // related side holds the FK
	MorphOne       RelationKind = "morph_one"        // related side holds FK and discriminator
	HasMany        RelationKind = "has_many"         // related side holds the FK
	MorphMany      RelationKind = "morph_many"       // related side holds FK and discriminator
	BelongsToMany  RelationKind = "belongs_to_many"  // join table
	MorphToMany    RelationKind = "morph_to_many"    // join table, discriminator names the parent type
	MorphedByMany  RelationKind = "morphed_by_many"  // join table, discriminator names the related type
	HasOneThrough  RelationKind = "has_one_through"  // parent -> intermediate -> far
	HasManyThrough RelationKind = "has_many_through" // parent -> intermediate -> far
)

// RelationKinds lists every built-in kind.
var RelationKinds = []RelationKind{
	BelongsTo, MorphTo,
	HasOne, MorphOne,
	HasMany, MorphMany,
	BelongsToMany, MorphToMany, MorphedByMany,
	HasOneThrough, HasManyThrough,
}

// kindParents records the general capability each specialized kind extends.
var kindParents = map[RelationKind]RelationKind{
	MorphTo:       BelongsTo,
	MorphOne:      HasOne,
	MorphMany:     HasMany,
	MorphToMany:   BelongsToMany,
	MorphedByMany: MorphToMany,
}

// Parent returns the more general kind k specializes, or "" when k is a root.
func (k RelationKind) Parent() RelationKind {
	return kindParents[k]
}

// Is reports whether k equals other or specializes it.
func (k RelationKind) Is(other RelationKind) bool {
	for c := k; c != ""; c = c.Parent() {
		if c == other {
			return true
		}
	}
	return false
}

// IsToMany reports whether the relation holds a collection.
func (k RelationKind) IsToMany() bool {
	switch {
	case k.Is(HasMany), k.Is(BelongsToMany), k == HasManyThrough:
		return true
	}
	return false
}

// IsPolymorphic reports whether the relation carries a type discriminator.
func (k RelationKind) IsPolymorphic() bool {
	switch k {
	case MorphTo, MorphOne, MorphMany, MorphToMany, MorphedByMany:
		return true
	}
	return false
}

// Valid reports whether k is one of the built-in kinds.
func (k RelationKind) Valid() bool {
	for _, known := range RelationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Relation describes one named relationship of an entity type. Field names
// that do not apply to the kind are left empty; the catalog fills in
// conventional defaults when it links the types.
type Relation struct {
	Name    string       `yaml:"-"`
	Kind    RelationKind `yaml:"kind"`
	Related string       `yaml:"related"`

	// ForeignKey is the FK column: on the parent for belongs_to and morph_to,
	// on the related type for has_one, has_many and their morph variants.
	ForeignKey string `yaml:"foreign_key"`

	// OwnerKey is the related key a belongs_to FK points at.
	OwnerKey string `yaml:"owner_key"`

	// LocalKey is the parent key copied into the related FK.
	LocalKey string `yaml:"local_key"`

	// Morph is the polymorphic prefix, e.g. "commentable". MorphType is the
	// discriminator column, default "{Morph}_type".
	Morph     string `yaml:"morph"`
	MorphType string `yaml:"morph_type"`

	// Join table settings for the many-to-many kinds.
	JoinTable       string   `yaml:"join_table"`
	JoinKey         string   `yaml:"join_key"`
	ForeignPivotKey string   `yaml:"foreign_pivot_key"`
	RelatedPivotKey string   `yaml:"related_pivot_key"`
	RelatedKey      string   `yaml:"related_key"`
	PivotFields     []string `yaml:"pivot_fields"`
	PivotTimestamps bool     `yaml:"pivot_timestamps"`

	// Through settings: Through is the intermediate type, FirstKey its FK to
	// the parent, SecondKey the far type's FK to the intermediate, and
	// SecondLocalKey the intermediate key SecondKey points at.
	Through        string `yaml:"through"`
	FirstKey       string `yaml:"first_key"`
	SecondKey      string `yaml:"second_key"`
	SecondLocalKey string `yaml:"second_local_key"`
}

// NoJoinKey disables the generated join-row identifier column.
const NoJoinKey = "-"

// HasJoinKey reports whether join rows carry their own identifier column.
func (r *Relation) HasJoinKey() bool {
	return r.JoinKey != "" && r.JoinKey != NoJoinKey
}
