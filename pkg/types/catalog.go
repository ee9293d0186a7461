package types

// Catalog answers which entity types exist and which of their members are
// relationships.
type Catalog interface {
	// Type returns the entity type registered under name.
	Type(name string) (*EntityType, error)

	// MorphType returns the entity type whose discriminator value is morph.
	MorphType(morph string) (*EntityType, error)

	// IsRelation reports whether name is a relation of t.
	IsRelation(t *EntityType, name string) bool

	// DescribeRelation returns the descriptor of t's relation name.
	DescribeRelation(t *EntityType, name string) (*Relation, error)

	// RelationName maps an input data key to the relation it denotes,
	// tolerating snake_case and camelCase spellings.
	RelationName(t *EntityType, key string) (string, bool)
}
