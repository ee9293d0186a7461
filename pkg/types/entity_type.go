package types

// DefaultPrimaryKey is the key field used when an EntityType names none.
const DefaultPrimaryKey = "id"

// Timestamp column names maintained for types with Timestamps enabled.
const (
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

// EntityType is the schema of one kind of record: its table, key, the scalar
// fields callers may assign, and its relationships.
type EntityType struct {
	Name       string `yaml:"-"`
	Table      string `yaml:"table"`
	PrimaryKey string `yaml:"primary_key"`

	// MorphName is the discriminator value stored for this type in
	// polymorphic relations. Defaults to Name.
	MorphName string `yaml:"morph_name"`

	// Fillable lists the scalar fields assignable from input data.
	Fillable []string `yaml:"fillable"`

	// Unique lists alternate unique fields tried, in order, when input data
	// carries no usable primary key.
	Unique []string `yaml:"unique"`

	// Timestamps enables created_at/updated_at maintenance on save.
	Timestamps bool `yaml:"timestamps"`

	Relations map[string]*Relation `yaml:"relations"`
}

// KeyName returns the primary key field name.
func (t *EntityType) KeyName() string {
	if t.PrimaryKey == "" {
		return DefaultPrimaryKey
	}
	return t.PrimaryKey
}

// MorphClass returns the discriminator value for this type.
func (t *EntityType) MorphClass() string {
	if t.MorphName == "" {
		return t.Name
	}
	return t.MorphName
}

// IsFillable reports whether field may be assigned from input data.
func (t *EntityType) IsFillable(field string) bool {
	for _, f := range t.Fillable {
		if f == field {
			return true
		}
	}
	return false
}

// Relation returns the named relation descriptor.
func (t *EntityType) Relation(name string) (*Relation, bool) {
	r, ok := t.Relations[name]
	return r, ok
}
