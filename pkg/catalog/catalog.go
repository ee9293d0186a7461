// Package catalog provides the public API for describing entity types and
// their relations.
package catalog

import (
	"github.com/mesh-intelligence/graphfill/internal/catalog"
)

// Catalog holds linked entity types.
type Catalog = catalog.Catalog

// New returns an empty catalog. Register types, then call Link.
func New() *Catalog {
	return catalog.New()
}

// Load reads and links a YAML catalog file.
func Load(path string) (*Catalog, error) {
	return catalog.Load(path)
}

// Parse reads and links a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	return catalog.Parse(data)
}
