package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// document is the YAML layout of a catalog file:
//
//	types:
//	  User:
//	    table: users
//	    fillable: [id, name, email]
//	    unique: [email]
//	    relations:
//	      posts: {kind: has_many, related: Post}
type document struct {
	Types map[string]*types.EntityType `yaml:"types"`
}

// Load reads and links a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds and links a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	c := New()
	for _, name := range names {
		t := doc.Types[name]
		if t == nil {
			t = &types.EntityType{}
		}
		t.Name = name
		if err := c.Register(t); err != nil {
			return nil, err
		}
	}
	if err := c.Link(); err != nil {
		return nil, err
	}
	return c, nil
}
